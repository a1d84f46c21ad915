// Package risingwave builds the DDL that provisions a MySQL CDC pipeline
// inside RisingWave: schema, secrets, shared source, mirror table and sink.
package risingwave

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/typemapper"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
)

func SourceSecretName(targetSchema string) stmt.Name {
	return stmt.Qualified(targetSchema, constants.SourceCredentialSecret)
}

func WarehouseSecretName(targetSchema string) stmt.Name {
	return stmt.Qualified(targetSchema, constants.WarehouseCredentialSecret)
}

// SourceName is shared by every table synced from one source database into one schema
func SourceName(targetSchema, sourceDatabase string) stmt.Name {
	return stmt.Qualified(targetSchema, sourceDatabase+constants.SourceObjectSuffix)
}

func MirrorTableName(targetSchema, targetTable string) stmt.Name {
	return stmt.Qualified(targetSchema, targetTable)
}

func SinkName(targetSchema, targetTable string) stmt.Name {
	return stmt.Qualified(targetSchema, targetTable+constants.SinkObjectSuffix)
}

// ServerID draws a replication client id from the reserved range
func ServerID() int {
	return constants.MinServerID + rand.IntN(constants.MaxServerID-constants.MinServerID)
}

func CreateSchema(targetSchema string) stmt.Statement {
	return stmt.Statement{
		Dialect:     stmt.Postgres,
		Verb:        stmt.Create,
		Kind:        stmt.Schema,
		Name:        stmt.Qualified(targetSchema),
		IfNotExists: true,
	}
}

func createSecret(name stmt.Name, password string) stmt.Statement {
	return stmt.Statement{
		Dialect:     stmt.Postgres,
		Verb:        stmt.Create,
		Kind:        stmt.Secret,
		Name:        name,
		IfNotExists: true,
		Clauses: []stmt.Clause{
			stmt.With(stmt.Opt("backend", stmt.Literal(constants.SecretBackend))),
			stmt.AsLiteral(password),
		},
	}
}

// CreateSourceSecret stores the MySQL password as {targetSchema}.mysql_pwd
func CreateSourceSecret(source *types.ConnectionProfile, targetSchema string) stmt.Statement {
	return createSecret(SourceSecretName(targetSchema), source.Password)
}

// CreateWarehouseSecret stores the StarRocks password as {targetSchema}.starrocks_pwd
func CreateWarehouseSecret(warehouse *types.ConnectionProfile, targetSchema string) stmt.Statement {
	return createSecret(WarehouseSecretName(targetSchema), warehouse.Password)
}

// CreateCDCSource declares the database-scoped mysql-cdc source
func CreateCDCSource(source *types.ConnectionProfile, sourceDatabase, targetSchema string) stmt.Statement {
	return createCDCSource(source, sourceDatabase, targetSchema, ServerID())
}

func createCDCSource(source *types.ConnectionProfile, sourceDatabase, targetSchema string, serverID int) stmt.Statement {
	return stmt.Statement{
		Dialect:     stmt.Postgres,
		Verb:        stmt.Create,
		Kind:        stmt.Source,
		Name:        SourceName(targetSchema, sourceDatabase),
		IfNotExists: true,
		Clauses: []stmt.Clause{
			stmt.With(
				stmt.Opt("connector", stmt.Literal("mysql-cdc")),
				stmt.Opt("hostname", stmt.Literal(source.Host)),
				stmt.Opt("port", stmt.IntLiteral(source.Port)),
				stmt.Opt("username", stmt.Literal(source.Username)),
				stmt.Opt("password", stmt.SecretRef(SourceSecretName(targetSchema))),
				stmt.Opt("database.name", stmt.Literal(sourceDatabase)),
				stmt.Opt("server.id", stmt.IntLiteral(serverID)),
				stmt.Opt("auto.schema.change", stmt.Literal("true")),
			),
		},
	}
}

// CreateMirrorTable materializes one upstream table of the shared source
func CreateMirrorTable(sourceDatabase, sourceTable, targetSchema, targetTable string) stmt.Statement {
	return stmt.Statement{
		Dialect:     stmt.Postgres,
		Verb:        stmt.Create,
		Kind:        stmt.Table,
		Name:        MirrorTableName(targetSchema, targetTable),
		IfNotExists: true,
		Clauses: []stmt.Clause{
			stmt.WildcardColumns(),
			stmt.FromSourceTable(SourceName(targetSchema, sourceDatabase), fmt.Sprintf("%s.%s", sourceDatabase, sourceTable)),
		},
	}
}

// CreateSink streams the mirror table into StarRocks in upsert mode. Columns
// whose RisingWave representation differs from the StarRocks column are cast
// in a projection; otherwise the sink reads the mirror table directly.
func CreateSink(warehouse *types.ConnectionProfile, request *types.SyncRequest, schema *types.TableSchema) (stmt.Statement, error) {
	if !schema.HasPrimaryKey() {
		return stmt.Statement{}, utils.Errorf(utils.SQLGenerationError,
			"table %s.%s has no primary key, an upsert sink requires one", request.SourceDatabase, request.SourceTable)
	}

	mirror := MirrorTableName(request.TargetSchema, request.TargetTable)
	projection := make([]stmt.Projection, 0, len(schema.Columns))
	needsConversion := false
	for _, column := range schema.Columns {
		cast, ok := typemapper.SinkCast(column.DataType)
		needsConversion = needsConversion || ok
		projection = append(projection, stmt.Projection{Column: column.Name, Cast: cast})
	}

	httpPort := warehouse.HTTPPort
	if httpPort == 0 {
		httpPort = constants.DefaultWarehouseHTTPPort
	}

	var body stmt.Clause = stmt.From(mirror)
	if needsConversion {
		body = stmt.AsSelect(projection, mirror)
	}

	return stmt.Statement{
		Dialect:     stmt.Postgres,
		Verb:        stmt.Create,
		Kind:        stmt.Sink,
		Name:        SinkName(request.TargetSchema, request.TargetTable),
		IfNotExists: true,
		Clauses: []stmt.Clause{
			body,
			stmt.With(
				stmt.Opt("connector", stmt.Literal("starrocks")),
				stmt.Opt("starrocks.host", stmt.Literal(warehouse.Host)),
				stmt.Opt("starrocks.mysqlport", stmt.IntLiteral(warehouse.Port)),
				stmt.Opt("starrocks.httpport", stmt.IntLiteral(httpPort)),
				stmt.Opt("starrocks.user", stmt.Literal(warehouse.Username)),
				stmt.Opt("starrocks.password", stmt.SecretRef(WarehouseSecretName(request.TargetSchema))),
				stmt.Opt("starrocks.database", stmt.Literal(request.TargetSchema)),
				stmt.Opt("starrocks.table", stmt.Literal(request.TargetTable)),
				stmt.Opt("type", stmt.Literal("upsert")),
				stmt.Opt("primary_key", stmt.Literal(strings.Join(schema.PrimaryKeys, ","))),
			),
		},
	}, nil
}

func dropCascade(kind stmt.ObjectKind, name stmt.Name) stmt.Statement {
	return stmt.Statement{
		Dialect:  stmt.Postgres,
		Verb:     stmt.Drop,
		Kind:     kind,
		Name:     name,
		IfExists: true,
		Cascade:  true,
	}
}

func DropMirrorTable(targetSchema, targetTable string) stmt.Statement {
	return dropCascade(stmt.Table, MirrorTableName(targetSchema, targetTable))
}

func DropSink(targetSchema, targetTable string) stmt.Statement {
	return dropCascade(stmt.Sink, SinkName(targetSchema, targetTable))
}

// DropObject drops any catalog object by kind; used by catalog maintenance,
// never by the provisioning sequence for sources
func DropObject(kind stmt.ObjectKind, schema, name string) stmt.Statement {
	return dropCascade(kind, stmt.Qualified(schema, name))
}
