package starrocks

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gen "github.com/datazip-inc/rwcdc/generator/starrocks"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewClient(sqlx.NewDb(db, "mysql"), 0), mock
}

func TestTableExists(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  bool
	}{
		{name: "present", count: 1, want: true},
		{name: "absent", count: 0, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, mock := newMockClient(t)
			mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
				WithArgs("ods", "orders").
				WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(tc.count))

			exists, err := client.TableExists(context.Background(), "ods", "orders")
			require.NoError(t, err)
			assert.Equal(t, tc.want, exists)
		})
	}
}

func TestTableExistsFailure(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WillReturnError(errors.New("i/o timeout"))

	_, err := client.TableExists(context.Background(), "ods", "orders")
	assert.True(t, utils.IsKind(err, utils.ConnectionError))
}

func TestExec(t *testing.T) {
	client, mock := newMockClient(t)
	statement := gen.TruncateTable("ods", "orders")

	mock.ExpectExec(regexp.QuoteMeta(statement.SQL())).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, client.Exec(context.Background(), statement))

	mock.ExpectExec(regexp.QuoteMeta(statement.SQL())).WillReturnError(errors.New("Unknown database 'ods'"))
	err := client.Exec(context.Background(), statement)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncate table")
	assert.Contains(t, err.Error(), "Unknown database")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecLogsIntent(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{Level: "debug"})
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.Init(logger.Config{}) })

	client, mock := newMockClient(t)
	statement := gen.DropTable("ods", "orders")
	mock.ExpectExec(regexp.QuoteMeta(statement.SQL())).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, client.Exec(context.Background(), statement))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), statement.Describe())
	assert.NotContains(t, buf.String(), statement.SQL())
}
