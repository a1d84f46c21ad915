package risingwave

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/rwcdc/generator/risingwave"
	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/pkg/jdbc"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

// Client executes statements against a RisingWave frontend and browses its catalog
type Client struct {
	client  *sqlx.DB
	timeout time.Duration
}

// NewClient wraps an open connection; timeout bounds each statement, zero means none
func NewClient(client *sqlx.DB, timeout time.Duration) *Client {
	return &Client{client: client, timeout: timeout}
}

// Connect opens and pings a connection described by profile
func Connect(ctx context.Context, profile *types.ConnectionProfile, timeout time.Duration) (*Client, error) {
	cfg := FromProfile(profile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	connConfig, err := cfg.ConnConfig()
	if err != nil {
		return nil, err
	}

	client := sqlx.NewDb(stdlib.OpenDB(*connConfig), "pgx")
	if err := client.PingContext(ctx); err != nil {
		_ = client.Close()
		return nil, utils.Wrap(utils.ConnectionError, err, "failed to connect to RisingWave at %s", profile.Address())
	}
	logger.Debugf("connected to RisingWave at %s", profile.Address())
	return NewClient(client, timeout), nil
}

func (c *Client) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Exec renders and runs a single statement
func (c *Client) Exec(ctx context.Context, statement stmt.Statement) error {
	ctx, cancel := c.statementContext(ctx)
	defer cancel()

	// rendered text can carry secret passwords, only the intent is logged
	logger.Debugf("executing on RisingWave: %s", statement.Describe())
	if _, err := c.client.ExecContext(ctx, statement.SQL()); err != nil {
		return utils.Wrap(utils.ConnectionError, err, "%s", statement.Describe())
	}
	return nil
}

// ListSchemas returns the non-system schemas
func (c *Client) ListSchemas(ctx context.Context) ([]string, error) {
	var schemas []string
	if err := c.client.SelectContext(ctx, &schemas, jdbc.RisingWaveSchemasQuery()); err != nil {
		return nil, utils.Wrap(utils.ConnectionError, err, "failed to list schemas")
	}
	return schemas, nil
}

// ListObjects returns the names of objects of kind in schema
func (c *Client) ListObjects(ctx context.Context, kind stmt.ObjectKind, schema string) ([]string, error) {
	query, err := jdbc.RisingWaveRelationsQuery(kind)
	if err != nil {
		return nil, utils.Wrap(utils.ValidationError, err, "cannot list objects")
	}
	var names []string
	if err := c.client.SelectContext(ctx, &names, query, schema); err != nil {
		return nil, utils.Wrap(utils.ConnectionError, err, "failed to list %s objects in %s", strings.ToLower(string(kind)), schema)
	}
	return names, nil
}

// DropObjects drops the named objects of kind in schema, stopping at the first failure.
// It returns the names dropped so far.
func (c *Client) DropObjects(ctx context.Context, kind stmt.ObjectKind, schema string, names ...string) ([]string, error) {
	dropped := make([]string, 0, len(names))
	for _, name := range names {
		if err := c.Exec(ctx, risingwave.DropObject(kind, schema, name)); err != nil {
			return dropped, err
		}
		dropped = append(dropped, name)
	}
	return dropped, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
