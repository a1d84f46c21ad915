package constants

import "time"

const (
	// Streaming-engine object naming
	SourceCredentialSecret    = "mysql_pwd"
	WarehouseCredentialSecret = "starrocks_pwd"
	SourceObjectSuffix        = "_source"
	SinkObjectSuffix          = "_to_sr_sink"
	SecretBackend             = "meta"

	// CDC source server id range, upper bound exclusive
	MinServerID = 5000
	MaxServerID = 10000

	// Warehouse physical layout
	WarehouseBucketCount       = 10
	WarehouseReplicationFactor = 1
	WarehouseEngine            = "OLAP"
	DefaultWarehouseHTTPPort   = 8030

	DefaultMySQLPort      = 3306
	DefaultRisingWavePort = 4566
	DefaultStarRocksPort  = 9030

	DefaultHistoryLimit       = 50
	DefaultMaxConcurrentTasks = 4
	TaskPollInterval          = 2 * time.Second
	CancelledByUserMessage    = "Cancelled by user"
)

// viper keys
const (
	ConfigFile              = "CONFIG_FILE"
	EncryptionKey           = "ENCRYPTION_KEY"
	EnvPrefix               = "RWCDC"
	AppDatabaseHost         = "app_database.host"
	AppDatabasePort         = "app_database.port"
	AppDatabaseUsername     = "app_database.username"
	AppDatabasePassword     = "app_database.password"
	AppDatabaseName         = "app_database.database"
	LogLevel                = "log.level"
	LogFile                 = "log.file"
	LogMaxSizeMB            = "log.max_size_mb"
	LogMaxBackups           = "log.max_backups"
	LogMaxAgeDays           = "log.max_age_days"
	WorkerMaxConcurrent     = "worker.max_concurrent_tasks"
	WorkerStatementTimeout  = "worker.statement_timeout"
	StarRocksHTTPPortConfig = "starrocks.http_port"
)
