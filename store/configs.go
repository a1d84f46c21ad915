package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/rwcdc/crypto"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
)

const configColumns = "id, name, db_type, host, port, username, password, database_name, http_port, ssl_config, created_at, updated_at"

type configRow struct {
	ID        int64          `db:"id"`
	Name      string         `db:"name"`
	DBType    string         `db:"db_type"`
	Host      string         `db:"host"`
	Port      int            `db:"port"`
	Username  string         `db:"username"`
	Password  string         `db:"password"`
	Database  sql.NullString `db:"database_name"`
	HTTPPort  sql.NullInt64  `db:"http_port"`
	SSL       sql.NullString `db:"ssl_config"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// ConfigStore persists connection profiles with their passwords sealed by a SecretProvider
type ConfigStore struct {
	db      *sqlx.DB
	secrets crypto.SecretProvider
}

func NewConfigStore(db *sqlx.DB, secrets crypto.SecretProvider) *ConfigStore {
	return &ConfigStore{db: db, secrets: secrets}
}

func (s *ConfigStore) toProfile(ctx context.Context, row *configRow) (*types.ConnectionProfile, error) {
	dbType, err := types.ParseDBType(row.DBType)
	if err != nil {
		return nil, utils.Wrap(utils.ConfigError, err, "invalid connection %d", row.ID)
	}
	password, err := s.secrets.Decrypt(ctx, row.Password)
	if err != nil {
		return nil, err
	}

	profile := &types.ConnectionProfile{
		ID:        row.ID,
		Name:      row.Name,
		DBType:    dbType,
		Host:      row.Host,
		Port:      row.Port,
		Username:  row.Username,
		Password:  password,
		Database:  row.Database.String,
		HTTPPort:  int(row.HTTPPort.Int64),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.SSL.Valid && row.SSL.String != "" {
		profile.SSL = &utils.SSLConfig{}
		if err := profile.SSL.Scan(row.SSL.String); err != nil {
			return nil, utils.Wrap(utils.ConfigError, err, "invalid ssl config of connection %d", row.ID)
		}
	}
	return profile, nil
}

// columnValues validates profile and returns the values written for it, password sealed
func (s *ConfigStore) columnValues(ctx context.Context, profile *types.ConnectionProfile) ([]any, error) {
	if err := utils.Validate(profile); err != nil {
		return nil, err
	}
	if _, err := types.ParseDBType(string(profile.DBType)); err != nil {
		return nil, utils.Wrap(utils.ValidationError, err, "invalid connection %q", profile.Name)
	}
	if profile.SSL != nil {
		if err := profile.SSL.Validate(); err != nil {
			return nil, utils.Wrap(utils.ValidationError, err, "invalid ssl config")
		}
	}
	password, err := s.secrets.Encrypt(ctx, profile.Password)
	if err != nil {
		return nil, err
	}

	var httpPort any
	if profile.HTTPPort > 0 {
		httpPort = profile.HTTPPort
	}
	ssl, err := profile.SSL.Value()
	if err != nil {
		return nil, utils.Wrap(utils.ValidationError, err, "invalid ssl config")
	}
	return []any{
		profile.Name, profile.DBType, profile.Host, profile.Port, profile.Username,
		password, nullable(profile.Database), httpPort, ssl,
	}, nil
}

// Save stores a new profile and returns its id
func (s *ConfigStore) Save(ctx context.Context, profile *types.ConnectionProfile) (int64, error) {
	values, err := s.columnValues(ctx, profile)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO database_configs (name, db_type, host, port, username, password, database_name, http_port, ssl_config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, values...)
	if err != nil {
		return 0, utils.Wrap(utils.DatabaseError, err, "failed to save connection %q", profile.Name)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, utils.Wrap(utils.DatabaseError, err, "failed to read id of connection %q", profile.Name)
	}
	profile.ID = id
	return id, nil
}

func (s *ConfigStore) Update(ctx context.Context, id int64, profile *types.ConnectionProfile) error {
	values, err := s.columnValues(ctx, profile)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE database_configs
		SET name = ?, db_type = ?, host = ?, port = ?, username = ?, password = ?, database_name = ?,
			http_port = ?, ssl_config = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, append(values, id)...)
	if err != nil {
		return utils.Wrap(utils.DatabaseError, err, "failed to update connection %d", id)
	}
	return requireAffected(result, "connection", id)
}

// Resolve loads the profile with id, password decrypted
func (s *ConfigStore) Resolve(ctx context.Context, id int64) (*types.ConnectionProfile, error) {
	row := &configRow{}
	err := s.db.GetContext(ctx, row, "SELECT "+configColumns+" FROM database_configs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.Errorf(utils.NotFoundError, "connection %d not found", id)
	}
	if err != nil {
		return nil, utils.Wrap(utils.DatabaseError, err, "failed to resolve connection %d", id)
	}
	return s.toProfile(ctx, row)
}

func (s *ConfigStore) List(ctx context.Context) ([]*types.ConnectionProfile, error) {
	return s.list(ctx, "SELECT "+configColumns+" FROM database_configs ORDER BY created_at DESC, id DESC")
}

func (s *ConfigStore) ListByType(ctx context.Context, dbType types.DBType) ([]*types.ConnectionProfile, error) {
	return s.list(ctx, "SELECT "+configColumns+" FROM database_configs WHERE db_type = ? ORDER BY name", dbType)
}

func (s *ConfigStore) list(ctx context.Context, query string, args ...any) ([]*types.ConnectionProfile, error) {
	var rows []configRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, utils.Wrap(utils.DatabaseError, err, "failed to list connections")
	}
	profiles := make([]*types.ConnectionProfile, 0, len(rows))
	for i := range rows {
		profile, err := s.toProfile(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (s *ConfigStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM database_configs WHERE id = ?", id)
	if err != nil {
		return utils.Wrap(utils.DatabaseError, err, "failed to delete connection %d", id)
	}
	return requireAffected(result, "connection", id)
}

func requireAffected(result sql.Result, what string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return utils.Wrap(utils.DatabaseError, err, "failed to read affected rows")
	}
	if affected == 0 {
		return utils.Errorf(utils.NotFoundError, "%s %d not found", what, id)
	}
	return nil
}
