package protocol

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/drivers/risingwave"
	"github.com/datazip-inc/rwcdc/drivers/starrocks"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

// connectionFlags are the profile fields settable from the command line
type connectionFlags struct {
	name       string
	dbType     string
	host       string
	port       int
	username   string
	password   string
	database   string
	httpPort   int
	sslMode    string
	sslCAFile  string
	sslCrtFile string
	sslKeyFile string
}

var connFlags connectionFlags

func (f *connectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "", "", "Display name of the connection")
	cmd.Flags().StringVarP(&f.dbType, "type", "", "", "One of mysql, risingwave, starrocks")
	cmd.Flags().StringVarP(&f.host, "host", "", "", "Host name")
	cmd.Flags().IntVarP(&f.port, "port", "", 0, "(Optional) Port, defaults per type")
	cmd.Flags().StringVarP(&f.username, "username", "", "", "User name")
	cmd.Flags().StringVarP(&f.password, "password", "", "", "(Optional) Password, stored encrypted")
	cmd.Flags().StringVarP(&f.database, "database", "", "", "(Optional) Default database")
	cmd.Flags().IntVarP(&f.httpPort, "http-port", "", 0, "(Optional) StarRocks FE HTTP port used by sinks")
	cmd.Flags().StringVarP(&f.sslMode, "ssl-mode", "", "", "(Optional) disable, require, verify-ca or verify-full")
	cmd.Flags().StringVarP(&f.sslCAFile, "ssl-server-ca", "", "", "(Optional) Path to the server CA certificate")
	cmd.Flags().StringVarP(&f.sslCrtFile, "ssl-client-cert", "", "", "(Optional) Path to the client certificate")
	cmd.Flags().StringVarP(&f.sslKeyFile, "ssl-client-key", "", "", "(Optional) Path to the client key")
}

func readPEM(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", utils.Wrap(utils.ConfigError, err, "failed to read %s", path)
	}
	return string(content), nil
}

// apply copies the flags reported as changed onto profile and fills per-type defaults
func (f *connectionFlags) apply(profile *types.ConnectionProfile, changed func(string) bool, defaultHTTPPort int) error {
	if changed("name") {
		profile.Name = f.name
	}
	if changed("type") {
		dbType, err := types.ParseDBType(strings.ToLower(f.dbType))
		if err != nil {
			return utils.Wrap(utils.ValidationError, err, "invalid --type")
		}
		profile.DBType = dbType
	}
	if changed("host") {
		profile.Host = f.host
	}
	if changed("port") {
		profile.Port = f.port
	}
	if changed("username") {
		profile.Username = f.username
	}
	if changed("password") {
		profile.Password = f.password
	}
	if changed("database") {
		profile.Database = f.database
	}
	if changed("http-port") {
		profile.HTTPPort = f.httpPort
	}

	if changed("ssl-mode") || changed("ssl-server-ca") || changed("ssl-client-cert") || changed("ssl-client-key") {
		ssl := &utils.SSLConfig{}
		if profile.SSL != nil {
			*ssl = *profile.SSL
		}
		if changed("ssl-mode") {
			ssl.Mode = f.sslMode
		}
		var err error
		if changed("ssl-server-ca") {
			if ssl.ServerCA, err = readPEM(f.sslCAFile); err != nil {
				return err
			}
		}
		if changed("ssl-client-cert") {
			if ssl.ClientCert, err = readPEM(f.sslCrtFile); err != nil {
				return err
			}
		}
		if changed("ssl-client-key") {
			if ssl.ClientKey, err = readPEM(f.sslKeyFile); err != nil {
				return err
			}
		}
		profile.SSL = ssl
	}

	if profile.Port == 0 {
		switch profile.DBType {
		case types.MySQL:
			profile.Port = constants.DefaultMySQLPort
		case types.RisingWave:
			profile.Port = constants.DefaultRisingWavePort
		case types.StarRocks:
			profile.Port = constants.DefaultStarRocksPort
		}
	}
	if profile.DBType == types.StarRocks && profile.HTTPPort == 0 {
		profile.HTTPPort = defaultHTTPPort
	}
	return nil
}

// redacted strips the password before a profile is printed
func redacted(profiles ...*types.ConnectionProfile) []*types.ConnectionProfile {
	out := make([]*types.ConnectionProfile, 0, len(profiles))
	for _, profile := range profiles {
		copied := *profile
		copied.Password = ""
		if copied.SSL != nil {
			copied.SSL = &utils.SSLConfig{Mode: profile.SSL.Mode}
		}
		out = append(out, &copied)
	}
	return out
}

var connectionCmd = &cobra.Command{
	Use:   "connection",
	Short: "manage stored connection profiles",
}

var connectionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "store a new connection profile",
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		for _, required := range []string{"name", "type", "host", "username"} {
			if !cmd.Flags().Changed(required) {
				return utils.Errorf(utils.ValidationError, "--%s is required", required)
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		profile := &types.ConnectionProfile{}
		if err := connFlags.apply(profile, cmd.Flags().Changed, cfg.StarRocks.HTTPPort); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			id, err := a.configs.Save(ctx, profile)
			if err != nil {
				return err
			}
			logger.Infof("saved %s connection %q as %d", profile.DBType, profile.Name, id)
			return printJSON(cmd, map[string]int64{"id": id})
		})
	},
}

var connectionUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "change fields of a stored connection profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			profile, err := a.configs.Resolve(ctx, id)
			if err != nil {
				return err
			}
			if err := connFlags.apply(profile, cmd.Flags().Changed, cfg.StarRocks.HTTPPort); err != nil {
				return err
			}
			if err := a.configs.Update(ctx, id, profile); err != nil {
				return err
			}
			logger.Infof("updated connection %d", id)
			return nil
		})
	},
}

var connectionListType string

var connectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "list stored connection profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			var (
				profiles []*types.ConnectionProfile
				err      error
			)
			if connectionListType != "" {
				dbType, perr := types.ParseDBType(strings.ToLower(connectionListType))
				if perr != nil {
					return utils.Wrap(utils.ValidationError, perr, "invalid --type")
				}
				profiles, err = a.configs.ListByType(ctx, dbType)
			} else {
				profiles, err = a.configs.List(ctx)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, redacted(profiles...))
		})
	},
}

var connectionRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "delete a stored connection profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.configs.Delete(ctx, id); err != nil {
				return err
			}
			logger.Infof("removed connection %d", id)
			return nil
		})
	},
}

var connectionTestCmd = &cobra.Command{
	Use:   "test <id>",
	Short: "open and close a connection to check that it works",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			profile, err := a.configs.Resolve(ctx, id)
			if err != nil {
				return err
			}
			if err := testConnection(ctx, a, profile); err != nil {
				return err
			}
			logger.Infof("connection %s is reachable", profile)
			return nil
		})
	},
}

func testConnection(ctx context.Context, a *app, profile *types.ConnectionProfile) error {
	switch profile.DBType {
	case types.MySQL:
		_, err := a.fetcher.ListDatabases(ctx, profile)
		return err
	case types.RisingWave:
		client, err := risingwave.Connect(ctx, profile, cfg.Worker.StatementTimeout)
		if err != nil {
			return err
		}
		return client.Close()
	case types.StarRocks:
		client, err := starrocks.Connect(ctx, profile, cfg.Worker.StatementTimeout)
		if err != nil {
			return err
		}
		return client.Close()
	default:
		return fmt.Errorf("unsupported database type %s", profile.DBType)
	}
}

func init() {
	connFlags.register(connectionAddCmd)
	connFlags.register(connectionUpdateCmd)
	connectionListCmd.Flags().StringVarP(&connectionListType, "type", "", "", "(Optional) Only list connections of this type")
	connectionCmd.AddCommand(connectionAddCmd, connectionUpdateCmd, connectionListCmd, connectionRemoveCmd, connectionTestCmd)
}
