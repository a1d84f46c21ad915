package starrocks

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/drivers/mysql"
	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/pkg/jdbc"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

// Client executes statements against a StarRocks frontend over the MySQL protocol
type Client struct {
	client  *sqlx.DB
	timeout time.Duration
}

func NewClient(client *sqlx.DB, timeout time.Duration) *Client {
	return &Client{client: client, timeout: timeout}
}

// Connect opens a connection to the frontend query port. No database is selected
// since the target database may not exist yet.
func Connect(ctx context.Context, profile *types.ConnectionProfile, timeout time.Duration) (*Client, error) {
	cfg := mysql.FromProfile(profile, "")
	cfg.Database = ""
	if cfg.Port == 0 {
		cfg.Port = constants.DefaultStarRocksPort
	}
	client, err := mysql.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(client, timeout), nil
}

func (c *Client) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) Exec(ctx context.Context, statement stmt.Statement) error {
	ctx, cancel := c.statementContext(ctx)
	defer cancel()

	// rendered text can carry secret passwords, only the intent is logged
	logger.Debugf("executing on StarRocks: %s", statement.Describe())
	if _, err := c.client.ExecContext(ctx, statement.SQL()); err != nil {
		return utils.Wrap(utils.ConnectionError, err, "%s", statement.Describe())
	}
	return nil
}

// TableExists reports whether database.table is present
func (c *Client) TableExists(ctx context.Context, database, table string) (bool, error) {
	var count int
	if err := c.client.GetContext(ctx, &count, jdbc.StarRocksTableExistsQuery(), database, table); err != nil {
		return false, utils.Wrap(utils.ConnectionError, err, "failed to check table %s.%s", database, table)
	}
	return count > 0, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
