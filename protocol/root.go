package protocol

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/datazip-inc/rwcdc/config"
	"github.com/datazip-inc/rwcdc/crypto"
	"github.com/datazip-inc/rwcdc/drivers/mysql"
	"github.com/datazip-inc/rwcdc/engine"
	"github.com/datazip-inc/rwcdc/store"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

var (
	configPath    string
	encryptionKey string
	logLevel      string

	cfg      *config.Config
	commands = []*cobra.Command{}
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "rwcdc",
	Short: "provision MySQL to StarRocks CDC pipelines through RisingWave",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if encryptionKey != "" {
			loaded.EncryptionKey = encryptionKey
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded

		logger.Init(cfg.Log)
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// app holds everything a command needs to reach the application database
type app struct {
	db           *sqlx.DB
	configs      *store.ConfigStore
	tasks        *store.TaskStore
	fetcher      *mysql.SchemaFetcher
	orchestrator *engine.Orchestrator
}

func openApp(ctx context.Context) (*app, error) {
	db, err := mysql.Open(ctx, &cfg.AppDatabase)
	if err != nil {
		return nil, utils.Wrap(utils.DatabaseError, err, "cannot reach the application database")
	}
	secrets, err := crypto.NewSecretProvider(ctx, cfg.EncryptionKey)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	configs := store.NewConfigStore(db, secrets)
	tasks := store.NewTaskStore(db)
	fetcher := mysql.NewSchemaFetcher()
	connector := engine.DriverConnector{StatementTimeout: cfg.Worker.StatementTimeout}

	return &app{
		db:           db,
		configs:      configs,
		tasks:        tasks,
		fetcher:      fetcher,
		orchestrator: engine.NewOrchestrator(configs, tasks, fetcher, connector, cfg.Worker.MaxConcurrentTasks),
	}, nil
}

func (a *app) Close() {
	a.orchestrator.Shutdown()
	if err := a.db.Close(); err != nil {
		logger.Warnf("failed to close application database: %s", err)
	}
}

// withApp runs fn against an opened app; SIGINT and SIGTERM cancel ctx
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render output: %s", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, utils.Errorf(utils.ValidationError, "invalid id %q", raw)
	}
	return id, nil
}

func init() {
	commands = append(commands, migrateCmd, connectionCmd, sourceCmd, catalogCmd, syncCmd, retryCmd, cancelCmd, taskCmd)
	RootCmd.AddCommand(commands...)

	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "(Optional) Path to a YAML or JSON config file, defaults to $RWCDC_CONFIG_FILE")
	RootCmd.PersistentFlags().StringVarP(&encryptionKey, "encryption-key", "", "", "(Optional) Key protecting stored passwords. Provide the ARN of a KMS key or a passphrase.")
	RootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "", "(Optional) Override the configured log level")

	// Disable Cobra CLI's built-in usage and error handling
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
