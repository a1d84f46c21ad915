// Package starrocks builds warehouse DDL for the tables fed by RisingWave sinks.
package starrocks

import (
	"slices"
	"strconv"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/typemapper"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
)

func CreateDatabase(name string) stmt.Statement {
	return stmt.Statement{
		Dialect:     stmt.MySQL,
		Verb:        stmt.Create,
		Kind:        stmt.Database,
		Name:        stmt.Qualified(name),
		IfNotExists: true,
	}
}

func DropTable(database, table string) stmt.Statement {
	return stmt.Statement{
		Dialect:  stmt.MySQL,
		Verb:     stmt.Drop,
		Kind:     stmt.Table,
		Name:     stmt.Qualified(database, table),
		IfExists: true,
	}
}

func TruncateTable(database, table string) stmt.Statement {
	return stmt.Statement{
		Dialect: stmt.MySQL,
		Verb:    stmt.Truncate,
		Kind:    stmt.Table,
		Name:    stmt.Qualified(database, table),
	}
}

// keyColumns falls back to the first column when the source reports no key
func keyColumns(schema *types.TableSchema) []string {
	if schema.HasPrimaryKey() {
		return schema.PrimaryKeys
	}
	return []string{schema.Columns[0].Name}
}

// CreateTable renders a primary-key table. Key columns come first in key
// order since StarRocks requires them to lead the column list.
func CreateTable(schema *types.TableSchema, targetDatabase, targetTable string) (stmt.Statement, error) {
	if len(schema.Columns) == 0 {
		return stmt.Statement{}, utils.Errorf(utils.SQLGenerationError, "table %s has no columns", schema.TableName)
	}

	keys := keyColumns(schema)
	ordered := make([]types.ColumnDescriptor, 0, len(schema.Columns))
	for _, key := range keys {
		column, ok := schema.Column(key)
		if !ok {
			return stmt.Statement{}, utils.Errorf(utils.SQLGenerationError, "primary key column %s not found in table %s", key, schema.TableName)
		}
		ordered = append(ordered, column)
	}
	for _, column := range schema.Columns {
		if !slices.Contains(keys, column.Name) {
			ordered = append(ordered, column)
		}
	}

	defs := make([]stmt.ColumnDef, 0, len(ordered))
	for _, column := range ordered {
		srType, err := typemapper.MySQLToStarRocks(column.DataType)
		if err != nil {
			return stmt.Statement{}, err
		}
		def := stmt.ColumnDef{Name: column.Name, Type: srType, Nullable: column.IsNullable}
		if column.Comment != nil {
			def.Comment = *column.Comment
		}
		defs = append(defs, def)
	}

	return stmt.Statement{
		Dialect:     stmt.MySQL,
		Verb:        stmt.Create,
		Kind:        stmt.Table,
		Name:        stmt.Qualified(targetDatabase, targetTable),
		IfNotExists: true,
		Clauses: []stmt.Clause{
			stmt.Columns(defs...),
			stmt.Engine(constants.WarehouseEngine),
			stmt.PrimaryKey(keys...),
			stmt.DistributedByHash(constants.WarehouseBucketCount, keys[0]),
			stmt.Properties(stmt.Property{Key: "replication_num", Value: strconv.Itoa(constants.WarehouseReplicationFactor)}),
		},
	}, nil
}
