package jdbc

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

// MySQL-Specific Queries

// MySQLDatabasesQuery returns the query to list user databases
func MySQLDatabasesQuery() string {
	return `
		SELECT SCHEMA_NAME
		FROM INFORMATION_SCHEMA.SCHEMATA
		WHERE SCHEMA_NAME NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
		ORDER BY SCHEMA_NAME
	`
}

// MySQLDiscoverTablesQuery returns the query to discover tables in a MySQL database
func MySQLDiscoverTablesQuery() string {
	return `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`
}

// MySQLTableSchemaQuery returns the query to fetch column definitions of a table in MySQL
func MySQLTableSchemaQuery() string {
	return `
		SELECT
			COLUMN_NAME,
			COLUMN_TYPE,
			IS_NULLABLE,
			COLUMN_KEY,
			COLUMN_DEFAULT,
			COLUMN_COMMENT,
			CHARACTER_MAXIMUM_LENGTH,
			NUMERIC_PRECISION,
			NUMERIC_SCALE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
}

// MySQLPrimaryKeyQuery returns the query to fetch primary key columns of a table, in key order
func MySQLPrimaryKeyQuery() string {
	return `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION
	`
}

// MySQLIndexQuery returns the query to fetch secondary index columns of a table
func MySQLIndexQuery() string {
	return `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND INDEX_NAME <> 'PRIMARY'
		ORDER BY INDEX_NAME, SEQ_IN_INDEX
	`
}

// MySQLLogBinQuery returns the query to fetch the log_bin variable in MySQL
func MySQLLogBinQuery() string {
	return "SHOW VARIABLES LIKE 'log_bin'"
}

// MySQLBinlogFormatQuery returns the query to fetch the binlog_format variable in MySQL
func MySQLBinlogFormatQuery() string {
	return "SHOW VARIABLES LIKE 'binlog_format'"
}

// MySQLBinlogRowImageQuery returns the query to fetch the binlog_row_image variable in MySQL
func MySQLBinlogRowImageQuery() string {
	return "SHOW VARIABLES LIKE 'binlog_row_image'"
}

// MySQLVersion returns the flavor, major and minor version of the MySQL server
func MySQLVersion(ctx context.Context, client *sqlx.DB) (string, int, int, error) {
	var version string
	err := client.QueryRowContext(ctx, "SELECT @@version").Scan(&version)
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to get MySQL version: %s", err)
	}
	return ParseMySQLVersion(version)
}

// ParseMySQLVersion splits a @@version string into flavor, major and minor
func ParseMySQLVersion(version string) (string, int, int, error) {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return "", 0, 0, fmt.Errorf("invalid version format: %s", version)
	}
	majorVersion, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid major version: %s", err)
	}

	minor := parts[1]
	if idx := strings.IndexFunc(minor, func(r rune) bool { return r < '0' || r > '9' }); idx >= 0 {
		minor = minor[:idx]
	}
	minorVersion, err := strconv.Atoi(minor)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid minor version: %s", err)
	}

	mysqlFlavor := "MySQL"
	if strings.Contains(strings.ToUpper(version), "MARIADB") {
		mysqlFlavor = "MariaDB"
	}

	return mysqlFlavor, majorVersion, minorVersion, nil
}

// WithIsolation runs fn inside a repeatable-read transaction
func WithIsolation(ctx context.Context, client *sqlx.DB, readOnly bool, fn func(tx *sqlx.Tx) error) error {
	tx, err := client.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  readOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %s", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			logger.Errorf("transaction rollback failed: %s", rerr)
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// StarRocks-Specific Queries

// StarRocksTableExistsQuery returns the query counting tables with a given name in a database
func StarRocksTableExistsQuery() string {
	return `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?
	`
}

// RisingWave-Specific Queries

var risingWaveCatalogs = map[stmt.ObjectKind]string{
	stmt.Source:           "rw_sources",
	stmt.Table:            "rw_tables",
	stmt.MaterializedView: "rw_materialized_views",
	stmt.Sink:             "rw_sinks",
}

// RisingWaveSchemasQuery returns the query to list user schemas
func RisingWaveSchemasQuery() string {
	return `
		SELECT name
		FROM rw_catalog.rw_schemas
		WHERE name NOT IN ('pg_catalog', 'information_schema', 'rw_catalog')
		ORDER BY name
	`
}

// RisingWaveRelationsQuery returns the query listing objects of one kind in a schema
func RisingWaveRelationsQuery(kind stmt.ObjectKind) (string, error) {
	catalog, ok := risingWaveCatalogs[kind]
	if !ok {
		return "", fmt.Errorf("unsupported catalog object kind: %s", kind)
	}
	return fmt.Sprintf(`
		SELECT r.name
		FROM rw_catalog.%s r
		JOIN rw_catalog.rw_schemas s ON r.schema_id = s.id
		WHERE s.name = $1
		ORDER BY r.name
	`, catalog), nil
}
