package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/rwcdc/pkg/jdbc"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

type columnRow struct {
	Name       string         `db:"COLUMN_NAME"`
	ColumnType string         `db:"COLUMN_TYPE"`
	IsNullable string         `db:"IS_NULLABLE"`
	ColumnKey  string         `db:"COLUMN_KEY"`
	Default    sql.NullString `db:"COLUMN_DEFAULT"`
	Comment    sql.NullString `db:"COLUMN_COMMENT"`
	MaxLength  sql.NullInt64  `db:"CHARACTER_MAXIMUM_LENGTH"`
	Precision  sql.NullInt64  `db:"NUMERIC_PRECISION"`
	Scale      sql.NullInt64  `db:"NUMERIC_SCALE"`
}

type indexRow struct {
	IndexName  string `db:"INDEX_NAME"`
	ColumnName string `db:"COLUMN_NAME"`
	NonUnique  int    `db:"NON_UNIQUE"`
}

// SchemaFetcher reads table definitions from a MySQL source
type SchemaFetcher struct {
	open func(ctx context.Context, cfg *Config) (*sqlx.DB, error)
}

func NewSchemaFetcher() *SchemaFetcher {
	return &SchemaFetcher{open: Open}
}

func (f *SchemaFetcher) connect(ctx context.Context, profile *types.ConnectionProfile, database string) (*sqlx.DB, error) {
	client, err := f.open(ctx, FromProfile(profile, database))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func closeClient(client *sqlx.DB) {
	if err := client.Close(); err != nil {
		logger.Warnf("failed to close MySQL connection: %s", err)
	}
}

// Fetch returns the columns, primary key and secondary indexes of database.table
func (f *SchemaFetcher) Fetch(ctx context.Context, profile *types.ConnectionProfile, database, table string) (*types.TableSchema, error) {
	client, err := f.connect(ctx, profile, database)
	if err != nil {
		return nil, err
	}
	defer closeClient(client)

	schema := &types.TableSchema{Database: database, TableName: table}
	err = jdbc.WithIsolation(ctx, client, true, func(tx *sqlx.Tx) error {
		var columns []columnRow
		if err := tx.SelectContext(ctx, &columns, jdbc.MySQLTableSchemaQuery(), database, table); err != nil {
			return fmt.Errorf("failed to read columns: %s", err)
		}
		if len(columns) == 0 {
			return utils.Errorf(utils.NotFoundError, "table %s.%s not found", database, table)
		}

		var primaryKeys []string
		if err := tx.SelectContext(ctx, &primaryKeys, jdbc.MySQLPrimaryKeyQuery(), database, table); err != nil {
			return fmt.Errorf("failed to read primary key: %s", err)
		}

		var indexes []indexRow
		if err := tx.SelectContext(ctx, &indexes, jdbc.MySQLIndexQuery(), database, table); err != nil {
			return fmt.Errorf("failed to read indexes: %s", err)
		}

		schema.PrimaryKeys = primaryKeys
		schema.Columns = toColumnDescriptors(columns, primaryKeys)
		schema.Indexes = toIndexDescriptors(indexes)
		return nil
	})
	if err != nil {
		if utils.KindOf(err) != "" {
			return nil, err
		}
		return nil, utils.Wrap(utils.ConnectionError, err, "failed to fetch schema of %s.%s", database, table)
	}

	if err := schema.Validate(); err != nil {
		return nil, utils.Wrap(utils.ValidationError, err, "inconsistent schema for %s.%s", database, table)
	}
	return schema, nil
}

func toColumnDescriptors(rows []columnRow, primaryKeys []string) []types.ColumnDescriptor {
	keys := make(map[string]struct{}, len(primaryKeys))
	for _, key := range primaryKeys {
		keys[key] = struct{}{}
	}

	columns := make([]types.ColumnDescriptor, 0, len(rows))
	for _, row := range rows {
		_, isKey := keys[row.Name]
		column := types.ColumnDescriptor{
			Name:         row.Name,
			DataType:     row.ColumnType,
			IsNullable:   strings.EqualFold(row.IsNullable, "YES"),
			IsPrimaryKey: isKey,
		}
		if row.Default.Valid {
			column.DefaultValue = &row.Default.String
		}
		if row.Comment.Valid && row.Comment.String != "" {
			column.Comment = &row.Comment.String
		}
		if row.MaxLength.Valid {
			column.MaxLength = &row.MaxLength.Int64
		}
		if row.Precision.Valid {
			column.Precision = &row.Precision.Int64
		}
		if row.Scale.Valid {
			column.Scale = &row.Scale.Int64
		}
		columns = append(columns, column)
	}
	return columns
}

func toIndexDescriptors(rows []indexRow) []types.IndexDescriptor {
	var indexes []types.IndexDescriptor
	for _, row := range rows {
		if n := len(indexes); n > 0 && indexes[n-1].Name == row.IndexName {
			indexes[n-1].Columns = append(indexes[n-1].Columns, row.ColumnName)
			continue
		}
		indexes = append(indexes, types.IndexDescriptor{
			Name:     row.IndexName,
			Columns:  []string{row.ColumnName},
			IsUnique: row.NonUnique == 0,
		})
	}
	return indexes
}

// ListDatabases returns the user databases visible to the profile
func (f *SchemaFetcher) ListDatabases(ctx context.Context, profile *types.ConnectionProfile) ([]string, error) {
	client, err := f.connect(ctx, profile, "")
	if err != nil {
		return nil, err
	}
	defer closeClient(client)

	var databases []string
	if err := client.SelectContext(ctx, &databases, jdbc.MySQLDatabasesQuery()); err != nil {
		return nil, utils.Wrap(utils.ConnectionError, err, "failed to list databases")
	}
	return databases, nil
}

// ListTables returns the base tables of database
func (f *SchemaFetcher) ListTables(ctx context.Context, profile *types.ConnectionProfile, database string) ([]string, error) {
	client, err := f.connect(ctx, profile, database)
	if err != nil {
		return nil, err
	}
	defer closeClient(client)

	var tables []string
	if err := client.SelectContext(ctx, &tables, jdbc.MySQLDiscoverTablesQuery(), database); err != nil {
		return nil, utils.Wrap(utils.ConnectionError, err, "failed to list tables of %s", database)
	}
	return tables, nil
}
