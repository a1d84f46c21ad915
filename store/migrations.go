package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

var migrations = []struct {
	table string
	ddl   string
}{
	{
		table: "database_configs",
		ddl: `CREATE TABLE IF NOT EXISTS database_configs (
    id INT AUTO_INCREMENT PRIMARY KEY,
    name VARCHAR(255) NOT NULL UNIQUE,
    db_type VARCHAR(50) NOT NULL,
    host VARCHAR(255) NOT NULL,
    port INT NOT NULL,
    username VARCHAR(255) NOT NULL,
    password TEXT NOT NULL,
    database_name VARCHAR(255),
    http_port INT NULL,
    ssl_config TEXT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
	{
		table: "sync_tasks",
		ddl: `CREATE TABLE IF NOT EXISTS sync_tasks (
    id INT AUTO_INCREMENT PRIMARY KEY,
    task_name VARCHAR(500) NOT NULL,
    mysql_config_id INT NOT NULL,
    rw_config_id INT NOT NULL,
    sr_config_id INT NOT NULL,
    mysql_database VARCHAR(255) NOT NULL,
    mysql_table VARCHAR(1024) NOT NULL,
    target_database VARCHAR(255) NOT NULL,
    target_table VARCHAR(255) NOT NULL,
    status VARCHAR(50) NOT NULL DEFAULT 'pending',
    started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at TIMESTAMP NULL,
    error_message TEXT,
    options TEXT NOT NULL DEFAULT ('{}'),
    tables TEXT NULL,
    FOREIGN KEY (mysql_config_id) REFERENCES database_configs(id) ON DELETE CASCADE,
    FOREIGN KEY (rw_config_id) REFERENCES database_configs(id) ON DELETE CASCADE,
    FOREIGN KEY (sr_config_id) REFERENCES database_configs(id) ON DELETE CASCADE,
    INDEX idx_status (status),
    INDEX idx_started_at (started_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
	{
		table: "task_logs",
		ddl: `CREATE TABLE IF NOT EXISTS task_logs (
    id INT AUTO_INCREMENT PRIMARY KEY,
    task_id INT NOT NULL,
    log_level VARCHAR(50) NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    FOREIGN KEY (task_id) REFERENCES sync_tasks(id) ON DELETE CASCADE,
    INDEX idx_task_id (task_id),
    INDEX idx_created_at (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
}

// Migrate creates the application tables when missing
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration.ddl); err != nil {
			return utils.Wrap(utils.DatabaseError, err, "failed to create table %s", migration.table)
		}
		logger.Debugf("table %s ready", migration.table)
	}
	logger.Info("application database migrated")
	return nil
}
