package mysql

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

// Config represents the configuration for connecting to a MySQL-protocol server.
// StarRocks frontends and the application database use it too.
type Config struct {
	Host             string            `json:"host" mapstructure:"host"`
	Username         string            `json:"username" mapstructure:"username"`
	Password         string            `json:"password" mapstructure:"password"`
	Database         string            `json:"database" mapstructure:"database"`
	Port             int               `json:"port" mapstructure:"port"`
	Params           map[string]string `json:"params" mapstructure:"params"`
	SSLConfiguration *utils.SSLConfig  `json:"ssl" mapstructure:"ssl"`
	Timeout          time.Duration     `json:"timeout" mapstructure:"timeout"`
}

// FromProfile builds a connection config for profile, optionally overriding the database
func FromProfile(profile *types.ConnectionProfile, database string) *Config {
	if database == "" {
		database = profile.Database
	}
	return &Config{
		Host:             profile.Host,
		Username:         profile.Username,
		Password:         profile.Password,
		Database:         database,
		Port:             profile.Port,
		SSLConfiguration: profile.SSL,
	}
}

// URI generates the DSN understood by the go mysql driver
func (c *Config) URI() (string, error) {
	if c.Port == 0 {
		c.Port = constants.DefaultMySQLPort
	}
	hostStr := c.Host
	if c.Host == "" {
		hostStr = "localhost"
	}

	cfg := gomysql.Config{
		User:                 c.Username,
		Passwd:               c.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", hostStr, c.Port),
		DBName:               c.Database,
		AllowNativePasswords: true,
		ParseTime:            true,
		Timeout:              c.Timeout,
	}

	if c.SSLConfiguration != nil {
		switch c.SSLConfiguration.Mode {
		case utils.SSLModeDisable:
			cfg.TLSConfig = "false"
		case utils.SSLModeRequire, utils.SSLModeVerifyCA, utils.SSLModeVerifyFull:
			tlsConfig, err := c.SSLConfiguration.TLSConfig(c.Host)
			if err != nil {
				return "", fmt.Errorf("failed to build TLS config: %s", err)
			}

			tlsConfigName := "rwcdc_" + utils.ULID()
			if err := gomysql.RegisterTLSConfig(tlsConfigName, tlsConfig); err != nil {
				return "", fmt.Errorf("failed to register TLS config: %s", err)
			}
			cfg.TLSConfig = tlsConfigName
		}
	}

	if len(c.Params) > 0 {
		cfg.Params = make(map[string]string, len(c.Params))
		maps.Copy(cfg.Params, c.Params)
	}

	return cfg.FormatDSN(), nil
}

// Validate checks the configuration for any missing or invalid fields
func (c *Config) Validate() error {
	if c.Host == "" {
		return utils.Errorf(utils.ConfigError, "empty host name")
	} else if strings.Contains(c.Host, "http") {
		return utils.Errorf(utils.ConfigError, "host should not contain http or https: %s", c.Host)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return utils.Errorf(utils.ConfigError, "invalid port number: must be between 1 and 65535")
	}

	if c.Username == "" {
		return utils.Errorf(utils.ConfigError, "username is required")
	}

	if c.SSLConfiguration != nil {
		if err := c.SSLConfiguration.Validate(); err != nil {
			return utils.Wrap(utils.ConfigError, err, "failed to validate SSL config")
		}
	}

	return nil
}

// Open validates the config, opens a pool and pings it
func Open(ctx context.Context, c *Config) (*sqlx.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	dsn, err := c.URI()
	if err != nil {
		return nil, utils.Wrap(utils.ConfigError, err, "failed to build DSN for %s", c.Host)
	}

	client, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, utils.Wrap(utils.ConnectionError, err, "failed to open connection to %s:%d", c.Host, c.Port)
	}
	if err := client.PingContext(ctx); err != nil {
		_ = client.Close()
		return nil, utils.Wrap(utils.ConnectionError, err, "failed to ping %s:%d", c.Host, c.Port)
	}
	logger.Debugf("connected to %s", utils.MaskDSN(dsn))
	return client, nil
}
