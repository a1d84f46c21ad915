package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/rwcdc/pkg/jdbc"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
)

func showVariable(ctx context.Context, client *sqlx.DB, query string) (string, error) {
	var variableName, variableValue string
	if err := client.QueryRowContext(ctx, query).Scan(&variableName, &variableValue); err != nil {
		return "", fmt.Errorf("failed to run %q: %s", query, err)
	}
	return variableValue, nil
}

// CheckBinlog reports server versions and binlog settings that would keep a
// CDC source from decoding full row images. An empty result means the server is ready.
func (f *SchemaFetcher) CheckBinlog(ctx context.Context, profile *types.ConnectionProfile) ([]string, error) {
	client, err := f.connect(ctx, profile, "")
	if err != nil {
		return nil, err
	}
	defer closeClient(client)

	var problems []string
	flavor, major, minor, err := jdbc.MySQLVersion(ctx, client)
	if err != nil {
		return nil, utils.Wrap(utils.ConnectionError, err, "failed to check server version")
	}
	if flavor == "MySQL" && (major < 5 || (major == 5 && minor < 7)) {
		problems = append(problems, fmt.Sprintf("server version is MySQL %d.%d, CDC needs 5.7 or later", major, minor))
	}

	checks := []struct {
		query string
		name  string
		want  string
	}{
		{jdbc.MySQLLogBinQuery(), "log_bin", "ON"},
		{jdbc.MySQLBinlogFormatQuery(), "binlog_format", "ROW"},
		{jdbc.MySQLBinlogRowImageQuery(), "binlog_row_image", "FULL"},
	}

	for _, check := range checks {
		value, err := showVariable(ctx, client, check.query)
		if err != nil {
			return nil, utils.Wrap(utils.ConnectionError, err, "failed to check %s", check.name)
		}
		if !strings.EqualFold(value, check.want) {
			problems = append(problems, fmt.Sprintf("%s is %s, expected %s", check.name, value, check.want))
		}
	}
	return problems, nil
}
