package starrocks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
)

func strPtr(s string) *string { return &s }

func orderLines() *types.TableSchema {
	return &types.TableSchema{
		Database:  "shop",
		TableName: "order_lines",
		Columns: []types.ColumnDescriptor{
			{Name: "note", DataType: "TEXT", IsNullable: true, Comment: strPtr("buyer's note")},
			{Name: "line_no", DataType: "INT", IsPrimaryKey: true},
			{Name: "qty", DataType: "tinyint", IsNullable: true},
			{Name: "order_id", DataType: "BIGINT", IsPrimaryKey: true},
			{Name: "created_at", DataType: "DATETIME(3)"},
		},
		PrimaryKeys: []string{"order_id", "line_no"},
	}
}

func TestCreateTable(t *testing.T) {
	table, err := CreateTable(orderLines(), "ods_shop", "order_lines")
	require.NoError(t, err)

	want := "CREATE TABLE IF NOT EXISTS `ods_shop`.`order_lines` (\n" +
		"    `order_id` BIGINT NOT NULL,\n" +
		"    `line_no` INT NOT NULL,\n" +
		"    `note` STRING NULL COMMENT 'buyer''s note',\n" +
		"    `qty` SMALLINT NULL,\n" +
		"    `created_at` DATETIME NOT NULL\n" +
		")\n" +
		"ENGINE=OLAP\n" +
		"PRIMARY KEY(`order_id`, `line_no`)\n" +
		"DISTRIBUTED BY HASH(`order_id`) BUCKETS 10\n" +
		"PROPERTIES (\n" +
		"    \"replication_num\" = \"1\"\n" +
		");"
	assert.Equal(t, want, table.SQL())
}

func TestCreateTableKeyColumnsLead(t *testing.T) {
	schema := orderLines()
	table, err := CreateTable(schema, "ods_shop", "order_lines")
	require.NoError(t, err)
	sql := table.SQL()

	lastKey := -1
	for _, key := range schema.PrimaryKeys {
		idx := strings.Index(sql, "`"+key+"` ")
		require.Greater(t, idx, lastKey, "key %s out of order", key)
		lastKey = idx
	}
	for _, column := range []string{"note", "qty", "created_at"} {
		assert.Greater(t, strings.Index(sql, "`"+column+"` "), lastKey)
	}
}

func TestCreateTableFallsBackToFirstColumn(t *testing.T) {
	schema := &types.TableSchema{
		TableName: "events",
		Columns: []types.ColumnDescriptor{
			{Name: "event_id", DataType: "BIGINT"},
			{Name: "payload", DataType: "JSON", IsNullable: true},
		},
	}
	table, err := CreateTable(schema, "ods", "events")
	require.NoError(t, err)
	assert.Contains(t, table.SQL(), "PRIMARY KEY(`event_id`)")
	assert.Contains(t, table.SQL(), "DISTRIBUTED BY HASH(`event_id`) BUCKETS 10")
	assert.Contains(t, table.SQL(), "`payload` JSON NULL")
}

func TestCreateTableUnsupportedType(t *testing.T) {
	schema := &types.TableSchema{
		TableName:   "places",
		Columns:     []types.ColumnDescriptor{{Name: "id", DataType: "INT"}, {Name: "location", DataType: "GEOMETRY"}},
		PrimaryKeys: []string{"id"},
	}
	_, err := CreateTable(schema, "ods", "places")
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.TypeMappingError))
	assert.Contains(t, err.Error(), "GEOMETRY")
}

func TestDeterministicStatements(t *testing.T) {
	first, err := CreateTable(orderLines(), "ods_shop", "order_lines")
	require.NoError(t, err)
	second, err := CreateTable(orderLines(), "ods_shop", "order_lines")
	require.NoError(t, err)
	assert.Equal(t, first.SQL(), second.SQL())

	assert.Equal(t, CreateDatabase("ods_shop").SQL(), CreateDatabase("ods_shop").SQL())
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS `ods_shop`;", CreateDatabase("ods_shop").SQL())
	assert.Equal(t, "DROP TABLE IF EXISTS `ods_shop`.`orders`;", DropTable("ods_shop", "orders").SQL())
	assert.Equal(t, "TRUNCATE TABLE `ods_shop`.`orders`;", TruncateTable("ods_shop", "orders").SQL())
}
