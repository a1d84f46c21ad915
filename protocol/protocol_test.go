package protocol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
)

func TestParseBatch(t *testing.T) {
	batch, err := parseBatch([]byte(`
mysql_config_id: 1
rw_config_id: 2
sr_config_id: 3
source_database: shop
target_schema: ods_shop
options:
  truncate_sr_table: true
tables:
  - source_table: orders
  - source_table: items
    target_table: order_items
  - source_database: crm
    source_table: leads
    target_schema: ods_crm
`))
	require.NoError(t, err)
	require.Len(t, batch, 3)

	assert.Equal(t, types.TableRef{SourceDatabase: "shop", SourceTable: "orders", TargetSchema: "ods_shop", TargetTable: "orders"}, batch[0].TableRef)
	assert.Equal(t, "order_items", batch[1].TargetTable)
	assert.Equal(t, types.TableRef{SourceDatabase: "crm", SourceTable: "leads", TargetSchema: "ods_crm", TargetTable: "leads"}, batch[2].TableRef)
	for _, request := range batch {
		assert.Equal(t, types.ConnectionKey{Source: 1, Streaming: 2, Warehouse: 3}, request.ConnectionKey())
		assert.True(t, request.Options.TruncateSRTable)
		assert.False(t, request.Options.RecreateSRTable)
	}
}

func TestParseBatchRejects(t *testing.T) {
	tests := map[string]string{
		"no tables":     "mysql_config_id: 1\nrw_config_id: 2\nsr_config_id: 3\n",
		"unknown field": "mysql_config_id: 1\nsink_mode: append\ntables:\n  - source_table: orders\n",
		"not yaml":      "tables: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseBatch([]byte(content))
			require.Error(t, err)
			assert.True(t, utils.IsKind(err, utils.ValidationError))
		})
	}
}

func changedSet(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, name := range names {
		set[name] = true
	}
	return func(name string) bool { return set[name] }
}

func TestConnectionFlagsApplyDefaults(t *testing.T) {
	flags := connectionFlags{name: "warehouse", dbType: "StarRocks", host: "sr-fe", username: "root"}
	profile := &types.ConnectionProfile{}

	require.NoError(t, flags.apply(profile, changedSet("name", "type", "host", "username"), 8040))
	assert.Equal(t, types.StarRocks, profile.DBType)
	assert.Equal(t, constants.DefaultStarRocksPort, profile.Port)
	assert.Equal(t, 8040, profile.HTTPPort)
	assert.Nil(t, profile.SSL)

	flags = connectionFlags{dbType: "postgres"}
	err := flags.apply(&types.ConnectionProfile{}, changedSet("type"), 8030)
	assert.True(t, utils.IsKind(err, utils.ValidationError))
}

func TestConnectionFlagsApplyUpdate(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(caPath, []byte("-----BEGIN CERTIFICATE-----"), 0o600))

	profile := &types.ConnectionProfile{
		ID: 7, Name: "source", DBType: types.MySQL, Host: "mysql", Port: 3307, Username: "cdc", Password: "old",
		SSL: &utils.SSLConfig{Mode: utils.SSLModeRequire, ClientCert: "cert"},
	}
	flags := connectionFlags{password: "new", sslMode: utils.SSLModeVerifyCA, sslCAFile: caPath}

	require.NoError(t, flags.apply(profile, changedSet("password", "ssl-mode", "ssl-server-ca"), 8030))
	assert.Equal(t, "new", profile.Password)
	assert.Equal(t, 3307, profile.Port)
	assert.Equal(t, "mysql", profile.Host)
	assert.Zero(t, profile.HTTPPort)
	assert.Equal(t, &utils.SSLConfig{Mode: utils.SSLModeVerifyCA, ServerCA: "-----BEGIN CERTIFICATE-----", ClientCert: "cert"}, profile.SSL)

	flags = connectionFlags{sslCAFile: filepath.Join(t.TempDir(), "missing.pem")}
	err := flags.apply(profile, changedSet("ssl-server-ca"), 8030)
	assert.True(t, utils.IsKind(err, utils.ConfigError))
}

func TestRedactedHidesSecrets(t *testing.T) {
	profile := &types.ConnectionProfile{Name: "rw", Password: "pw", SSL: &utils.SSLConfig{Mode: utils.SSLModeVerifyFull, ClientKey: "key"}}
	out := redacted(profile)

	require.Len(t, out, 1)
	assert.Empty(t, out[0].Password)
	assert.Equal(t, &utils.SSLConfig{Mode: utils.SSLModeVerifyFull}, out[0].SSL)
	assert.Equal(t, "pw", profile.Password)
	assert.Equal(t, "key", profile.SSL.ClientKey)
}

func TestParseObjectKind(t *testing.T) {
	kind, err := parseObjectKind("MV")
	require.NoError(t, err)
	assert.Equal(t, stmt.MaterializedView, kind)

	kind, err = parseObjectKind("sink")
	require.NoError(t, err)
	assert.Equal(t, stmt.Sink, kind)

	_, err = parseObjectKind("index")
	assert.True(t, utils.IsKind(err, utils.ValidationError))
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"0", "-1", "abc"} {
		_, err := parseID(raw)
		assert.True(t, utils.IsKind(err, utils.ValidationError), raw)
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"migrate"},
		{"connection", "add"},
		{"connection", "list"},
		{"connection", "remove"},
		{"source", "tables"},
		{"catalog", "drop"},
		{"sync"},
		{"retry"},
		{"cancel"},
		{"task", "history"},
	} {
		cmd, _, err := RootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
