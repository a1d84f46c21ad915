package protocol

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/rwcdc/drivers/risingwave"
	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

var (
	catalogSchema string
	catalogKind   string
)

var objectKinds = map[string]stmt.ObjectKind{
	"source":            stmt.Source,
	"table":             stmt.Table,
	"materialized_view": stmt.MaterializedView,
	"mv":                stmt.MaterializedView,
	"sink":              stmt.Sink,
}

func parseObjectKind(raw string) (stmt.ObjectKind, error) {
	kind, ok := objectKinds[strings.ToLower(raw)]
	if !ok {
		return "", utils.Errorf(utils.ValidationError, "unknown object kind %q, expected source, table, materialized_view or sink", raw)
	}
	return kind, nil
}

// resolveRole loads the profile behind the id argument and checks its type
func resolveRole(ctx context.Context, a *app, rawID string, role types.DBType) (*types.ConnectionProfile, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	profile, err := a.configs.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile.DBType != role {
		return nil, utils.Errorf(utils.ValidationError, "connection %d is a %s connection, expected %s", id, profile.DBType, role)
	}
	return profile, nil
}

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "browse a MySQL connection",
}

var sourceDatabasesCmd = &cobra.Command{
	Use:   "databases <connection-id>",
	Short: "list user databases",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			profile, err := resolveRole(ctx, a, args[0], types.MySQL)
			if err != nil {
				return err
			}
			databases, err := a.fetcher.ListDatabases(ctx, profile)
			if err != nil {
				return err
			}
			return printJSON(cmd, databases)
		})
	},
}

var sourceTablesCmd = &cobra.Command{
	Use:   "tables <connection-id> <database>",
	Short: "list base tables of a database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			profile, err := resolveRole(ctx, a, args[0], types.MySQL)
			if err != nil {
				return err
			}
			tables, err := a.fetcher.ListTables(ctx, profile, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, tables)
		})
	},
}

var sourceSchemaCmd = &cobra.Command{
	Use:   "schema <connection-id> <database> <table>",
	Short: "show the columns, keys and indexes of a table",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			profile, err := resolveRole(ctx, a, args[0], types.MySQL)
			if err != nil {
				return err
			}
			schema, err := a.fetcher.Fetch(ctx, profile, args[1], args[2])
			if err != nil {
				return err
			}
			return printJSON(cmd, schema)
		})
	},
}

var sourceBinlogCmd = &cobra.Command{
	Use:   "binlog <connection-id>",
	Short: "check that the server binlog settings support CDC",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			profile, err := resolveRole(ctx, a, args[0], types.MySQL)
			if err != nil {
				return err
			}
			problems, err := a.fetcher.CheckBinlog(ctx, profile)
			if err != nil {
				return err
			}
			if len(problems) == 0 {
				logger.Infof("binlog settings of %s support CDC", profile)
			}
			for _, problem := range problems {
				logger.Warn(problem)
			}
			return nil
		})
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "browse and clean up RisingWave objects",
}

// withStreaming opens the RisingWave connection named by the first argument
func withStreaming(cmd *cobra.Command, rawID string, fn func(ctx context.Context, client *risingwave.Client) error) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		profile, err := resolveRole(ctx, a, rawID, types.RisingWave)
		if err != nil {
			return err
		}
		client, err := risingwave.Connect(ctx, profile, cfg.Worker.StatementTimeout)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warnf("failed to close RisingWave connection: %s", err)
			}
		}()
		return fn(ctx, client)
	})
}

var catalogSchemasCmd = &cobra.Command{
	Use:   "schemas <connection-id>",
	Short: "list non-system schemas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStreaming(cmd, args[0], func(ctx context.Context, client *risingwave.Client) error {
			schemas, err := client.ListSchemas(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, schemas)
		})
	},
}

var catalogObjectsCmd = &cobra.Command{
	Use:   "objects <connection-id>",
	Short: "list objects of one kind in a schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseObjectKind(catalogKind)
		if err != nil {
			return err
		}
		return withStreaming(cmd, args[0], func(ctx context.Context, client *risingwave.Client) error {
			names, err := client.ListObjects(ctx, kind, catalogSchema)
			if err != nil {
				return err
			}
			return printJSON(cmd, names)
		})
	},
}

var catalogDropCmd = &cobra.Command{
	Use:   "drop <connection-id> <name>...",
	Short: "drop objects of one kind in a schema, cascading to dependents",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseObjectKind(catalogKind)
		if err != nil {
			return err
		}
		return withStreaming(cmd, args[0], func(ctx context.Context, client *risingwave.Client) error {
			dropped, err := client.DropObjects(ctx, kind, catalogSchema, args[1:]...)
			for _, name := range dropped {
				logger.Infof("dropped %s %s.%s", strings.ToLower(string(kind)), catalogSchema, name)
			}
			return err
		})
	},
}

func init() {
	sourceCmd.AddCommand(sourceDatabasesCmd, sourceTablesCmd, sourceSchemaCmd, sourceBinlogCmd)

	for _, cmd := range []*cobra.Command{catalogObjectsCmd, catalogDropCmd} {
		cmd.Flags().StringVarP(&catalogSchema, "schema", "s", "public", "Schema to look in")
		cmd.Flags().StringVarP(&catalogKind, "kind", "k", "sink", "One of source, table, materialized_view, sink")
	}
	catalogCmd.AddCommand(catalogSchemasCmd, catalogObjectsCmd, catalogDropCmd)
}
