package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/drivers/mysql"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

// Config is the process configuration of rwcdc
type Config struct {
	AppDatabase   mysql.Config  `json:"app_database" mapstructure:"app_database"`
	EncryptionKey string        `json:"encryption_key" mapstructure:"encryption_key"`
	Log           logger.Config `json:"log" mapstructure:"log"`
	Worker        Worker        `json:"worker" mapstructure:"worker"`
	StarRocks     StarRocks     `json:"starrocks" mapstructure:"starrocks"`
}

type Worker struct {
	MaxConcurrentTasks int `json:"max_concurrent_tasks" mapstructure:"max_concurrent_tasks" validate:"gte=1,lte=64"`
	// zero leaves statements unbounded
	StatementTimeout time.Duration `json:"statement_timeout" mapstructure:"statement_timeout" validate:"gte=0"`
}

type StarRocks struct {
	// used for sinks whose connection has no http_port of its own
	HTTPPort int `json:"http_port" mapstructure:"http_port" validate:"gte=1,lte=65535"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(constants.ConfigFile, "")
	v.SetDefault(constants.EncryptionKey, "")
	v.SetDefault(constants.AppDatabaseHost, "localhost")
	v.SetDefault(constants.AppDatabasePort, constants.DefaultMySQLPort)
	v.SetDefault(constants.AppDatabaseUsername, "root")
	v.SetDefault(constants.AppDatabasePassword, "")
	v.SetDefault(constants.AppDatabaseName, "rwcdc")
	v.SetDefault(constants.LogLevel, "info")
	v.SetDefault(constants.LogFile, "")
	v.SetDefault(constants.LogMaxSizeMB, 100)
	v.SetDefault(constants.LogMaxBackups, 5)
	v.SetDefault(constants.LogMaxAgeDays, 30)
	v.SetDefault(constants.WorkerMaxConcurrent, constants.DefaultMaxConcurrentTasks)
	v.SetDefault(constants.WorkerStatementTimeout, time.Duration(0))
	v.SetDefault(constants.StarRocksHTTPPortConfig, constants.DefaultWarehouseHTTPPort)
}

// Load reads configuration from defaults, an optional file and RWCDC_* environment
// variables, in increasing precedence. A .env file in the working directory is
// loaded into the environment first when present. An empty path falls back to
// RWCDC_CONFIG_FILE.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, utils.Wrap(utils.ConfigError, err, "failed to load .env file")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString(constants.ConfigFile)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, utils.Wrap(utils.ConfigError, err, "failed to read config file %s", path)
		}
		logger.Debugf("using config file %s", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, utils.Wrap(utils.ConfigError, err, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the application database connection settings
func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return utils.Wrap(utils.ConfigError, err, "invalid configuration")
	}
	if err := c.AppDatabase.Validate(); err != nil {
		return utils.Wrap(utils.ConfigError, err, "invalid app_database")
	}
	return nil
}
