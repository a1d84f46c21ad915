package types

import (
	"fmt"
	"strings"

	"github.com/mitchellh/hashstructure"
)

// ColumnDescriptor is one column as reported by the source system
type ColumnDescriptor struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	IsNullable   bool    `json:"is_nullable"`
	IsPrimaryKey bool    `json:"is_primary_key"`
	MaxLength    *int64  `json:"max_length,omitempty"`
	Precision    *int64  `json:"precision,omitempty"`
	Scale        *int64  `json:"scale,omitempty"`
	DefaultValue *string `json:"default_value,omitempty"`
	Comment      *string `json:"comment,omitempty"`
}

// IndexDescriptor is a secondary or unique index on the source table
type IndexDescriptor struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	IsUnique bool     `json:"is_unique"`
}

// TableSchema is the source definition of one table
type TableSchema struct {
	Database    string             `json:"database"`
	TableName   string             `json:"table_name"`
	Columns     []ColumnDescriptor `json:"columns"`
	PrimaryKeys []string           `json:"primary_keys"`
	Indexes     []IndexDescriptor  `json:"indexes,omitempty"`
}

// Column looks up a column by name
func (s *TableSchema) Column(name string) (ColumnDescriptor, bool) {
	for _, column := range s.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return ColumnDescriptor{}, false
}

// HasPrimaryKey reports whether the table declares at least one key column
func (s *TableSchema) HasPrimaryKey() bool {
	return len(s.PrimaryKeys) > 0
}

// Validate checks that every key column exists in the column list
func (s *TableSchema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", s.TableName)
	}
	var missing []string
	for _, key := range s.PrimaryKeys {
		if _, ok := s.Column(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("table %s primary key references unknown columns: %s", s.TableName, strings.Join(missing, ", "))
	}
	return nil
}

// Fingerprint is a stable hash of the schema, used to spot drift between runs
func (s *TableSchema) Fingerprint() (string, error) {
	hash, err := hashstructure.Hash(s, nil)
	if err != nil {
		return "", fmt.Errorf("failed to hash schema of %s: %s", s.TableName, err)
	}
	return fmt.Sprintf("%016x", hash), nil
}
