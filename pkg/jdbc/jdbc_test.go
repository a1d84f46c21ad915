package jdbc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/rwcdc/generator/stmt"
)

func TestParseMySQLVersion(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		wantFlavor  string
		wantMajor   int
		wantMinor   int
		expectError bool
	}{
		{name: "MySQL 5.7", version: "5.7.32-0ubuntu0.18.04.1", wantFlavor: "MySQL", wantMajor: 5, wantMinor: 7},
		{name: "MySQL 8.0", version: "8.0.23", wantFlavor: "MySQL", wantMajor: 8, wantMinor: 0},
		{name: "MySQL 8.4", version: "8.4.0", wantFlavor: "MySQL", wantMajor: 8, wantMinor: 4},
		{name: "MariaDB 10.5", version: "10.5.8-MariaDB-1:10.5.8+maria~focal", wantFlavor: "MariaDB", wantMajor: 10, wantMinor: 5},
		{name: "MariaDB 11.0", version: "11.0-MariaDB", wantFlavor: "MariaDB", wantMajor: 11, wantMinor: 0},
		{name: "invalid", version: "unknown", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flavor, major, minor, err := ParseMySQLVersion(tt.version)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlavor, flavor)
			assert.Equal(t, tt.wantMajor, major)
			assert.Equal(t, tt.wantMinor, minor)
		})
	}
}

func TestRisingWaveRelationsQuery(t *testing.T) {
	query, err := RisingWaveRelationsQuery(stmt.Sink)
	require.NoError(t, err)
	assert.Contains(t, query, "rw_catalog.rw_sinks")

	query, err = RisingWaveRelationsQuery(stmt.MaterializedView)
	require.NoError(t, err)
	assert.Contains(t, query, "rw_catalog.rw_materialized_views")

	_, err = RisingWaveRelationsQuery(stmt.Secret)
	assert.Error(t, err)
}
