package risingwave

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
)

const defaultDatabase = "dev"

type Config struct {
	Host             string            `json:"host"`
	Port             int               `json:"port"`
	Database         string            `json:"database"`
	Username         string            `json:"username"`
	Password         string            `json:"password"`
	Params           map[string]string `json:"params"`
	SSLConfiguration *utils.SSLConfig  `json:"ssl"`
}

func FromProfile(profile *types.ConnectionProfile) *Config {
	return &Config{
		Host:             profile.Host,
		Port:             profile.Port,
		Database:         profile.Database,
		Username:         profile.Username,
		Password:         profile.Password,
		SSLConfiguration: profile.SSL,
	}
}

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

// URL returns the postgres connection url; TLS material is applied separately
func (c *Config) URL() *url.URL {
	database := c.Database
	if database == "" {
		database = defaultDatabase
	}
	port := c.Port
	if port == 0 {
		port = constants.DefaultRisingWavePort
	}

	query := url.Values{}
	for k, v := range c.Params {
		query.Set(k, v)
	}
	switch {
	case c.SSLConfiguration == nil:
	case c.SSLConfiguration.Mode == utils.SSLModeDisable:
		query.Set("sslmode", utils.SSLModeDisable)
	default:
		query.Set("sslmode", utils.SSLModeRequire)
	}

	return &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, port),
		Path:     "/" + database,
		RawQuery: query.Encode(),
	}
}

// ConnConfig parses the url into a pgx config using the simple query protocol,
// which RisingWave DDL needs since its statements carry no bind parameters.
func (c *Config) ConnConfig() (*pgx.ConnConfig, error) {
	connConfig, err := pgx.ParseConfig(c.URL().String())
	if err != nil {
		return nil, utils.Wrap(utils.ConfigError, err, "failed to parse connection config for %s", c.Host)
	}
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	if c.SSLConfiguration != nil {
		tlsConfig, err := c.SSLConfiguration.TLSConfig(c.Host)
		if err != nil {
			return nil, utils.Wrap(utils.ConfigError, err, "failed to build TLS config")
		}
		if tlsConfig != nil {
			connConfig.TLSConfig = tlsConfig
			connConfig.Fallbacks = nil
		}
	}
	return connConfig, nil
}
