package risingwave

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gen "github.com/datazip-inc/rwcdc/generator/risingwave"
	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

func newMockClient(t *testing.T, timeout time.Duration, exact bool) (*Client, sqlmock.Sqlmock) {
	matcher := sqlmock.QueryMatcherRegexp
	if exact {
		matcher = sqlmock.QueryMatcherEqual
	}
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewClient(sqlx.NewDb(db, "pgx"), timeout), mock
}

func TestExecRendersStatement(t *testing.T) {
	client, mock := newMockClient(t, time.Minute, true)
	statement := gen.CreateSchema("ods_shop")

	mock.ExpectExec(statement.SQL()).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, client.Exec(context.Background(), statement))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecWrapsFailure(t *testing.T) {
	client, mock := newMockClient(t, 0, true)
	statement := gen.DropSink("ods", "orders")

	mock.ExpectExec(statement.SQL()).WillReturnError(errors.New("sink is in use"))

	err := client.Exec(context.Background(), statement)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.ConnectionError))
	assert.Contains(t, err.Error(), "drop sink ods.orders_to_sr_sink")
	assert.Contains(t, err.Error(), "sink is in use")
}

func TestExecDoesNotLogSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{Level: "debug"})
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.Init(logger.Config{}) })

	client, mock := newMockClient(t, 0, true)
	statement := gen.CreateSourceSecret(&types.ConnectionProfile{Password: "Sup3rS3cret"}, "ods_shop")
	mock.ExpectExec(statement.SQL()).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, client.Exec(context.Background(), statement))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), "create secret ods_shop.mysql_pwd")
	assert.NotContains(t, buf.String(), "Sup3rS3cret")
}

func TestListObjects(t *testing.T) {
	client, mock := newMockClient(t, 0, false)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rw_catalog.rw_sinks r")).
		WithArgs("ods").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("items_to_sr_sink").AddRow("orders_to_sr_sink"))

	sinks, err := client.ListObjects(context.Background(), stmt.Sink, "ods")
	require.NoError(t, err)
	assert.Equal(t, []string{"items_to_sr_sink", "orders_to_sr_sink"}, sinks)

	_, err = client.ListObjects(context.Background(), stmt.Secret, "ods")
	assert.True(t, utils.IsKind(err, utils.ValidationError))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSchemas(t *testing.T) {
	client, mock := newMockClient(t, 0, false)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rw_catalog.rw_schemas")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ods_crm").AddRow("public"))

	schemas, err := client.ListSchemas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ods_crm", "public"}, schemas)
}

func TestDropObjectsStopsAtFirstFailure(t *testing.T) {
	client, mock := newMockClient(t, 0, true)

	mock.ExpectExec(gen.DropObject(stmt.Table, "ods", "orders").SQL()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(gen.DropObject(stmt.Table, "ods", "Items").SQL()).WillReturnError(errors.New("permission denied"))

	dropped, err := client.DropObjects(context.Background(), stmt.Table, "ods", "orders", "Items", "never")
	require.Error(t, err)
	assert.Equal(t, []string{"orders"}, dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigURL(t *testing.T) {
	cfg := &Config{Host: "rw", Username: "root", Password: "p@ss"}
	u := cfg.URL()
	assert.Equal(t, "rw:4566", u.Host)
	assert.Equal(t, "/dev", u.Path)
	assert.Empty(t, u.RawQuery)

	cfg.SSLConfiguration = &utils.SSLConfig{Mode: utils.SSLModeDisable}
	assert.Equal(t, "sslmode=disable", cfg.URL().RawQuery)

	cfg.SSLConfiguration = &utils.SSLConfig{Mode: utils.SSLModeVerifyFull, ServerCA: ""}
	assert.Equal(t, "sslmode=require", cfg.URL().RawQuery)
}

func TestConnConfigUsesSimpleProtocol(t *testing.T) {
	cfg := FromProfile(&types.ConnectionProfile{Host: "rw", Port: 4566, Username: "root", Database: "dev"})
	connConfig, err := cfg.ConnConfig()
	require.NoError(t, err)
	assert.Equal(t, pgx.QueryExecModeSimpleProtocol, connConfig.DefaultQueryExecMode)
	assert.Equal(t, "rw", connConfig.Host)
	assert.Equal(t, uint16(4566), connConfig.Port)

	cfg.SSLConfiguration = &utils.SSLConfig{Mode: utils.SSLModeRequire}
	connConfig, err = cfg.ConnConfig()
	require.NoError(t, err)
	require.NotNil(t, connConfig.TLSConfig)
	assert.Empty(t, connConfig.Fallbacks)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{Host: "rw", Port: 4566, Username: "root"}).Validate())
	assert.True(t, utils.IsKind((&Config{Port: 4566, Username: "root"}).Validate(), utils.ConfigError))
	assert.True(t, utils.IsKind((&Config{Host: "rw", Username: "root"}).Validate(), utils.ConfigError))
}
