package engine

import (
	"context"
	"time"

	"github.com/datazip-inc/rwcdc/drivers/risingwave"
	"github.com/datazip-inc/rwcdc/drivers/starrocks"
	"github.com/datazip-inc/rwcdc/types"
)

// DriverConnector opens real RisingWave and StarRocks connections
type DriverConnector struct {
	// StatementTimeout bounds each statement; zero means no timeout
	StatementTimeout time.Duration
}

func (c DriverConnector) Streaming(ctx context.Context, profile *types.ConnectionProfile) (Executor, error) {
	client, err := risingwave.Connect(ctx, profile, c.StatementTimeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c DriverConnector) Warehouse(ctx context.Context, profile *types.ConnectionProfile) (WarehouseExecutor, error) {
	client, err := starrocks.Connect(ctx, profile, c.StatementTimeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}
