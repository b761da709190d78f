package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"

	queryTimeout = 5 * time.Second
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to dsn, verifies the connection and applies the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS validators (
		id TEXT PRIMARY KEY,
		public_key TEXT NOT NULL UNIQUE,
		address TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		capabilities TEXT[] NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'offline',
		last_seen TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		total_validations BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS targets (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL,
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT '',
		last_checked TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS ticks (
		id BIGSERIAL PRIMARY KEY,
		target_id TEXT NOT NULL REFERENCES targets(id),
		validator_id TEXT NOT NULL REFERENCES validators(id),
		status TEXT NOT NULL,
		latency DOUBLE PRECISION NOT NULL CHECK (latency >= 0),
		details JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_ticks_target_created ON ticks(target_id, created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_validators_status ON validators(status, address);
	CREATE INDEX IF NOT EXISTS idx_targets_account ON targets(account_id);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", what, ErrConflict)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

const validatorColumns = `id, public_key, address, location, version, capabilities, status, last_seen, total_validations, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanValidator(row rowScanner) (*models.Validator, error) {
	var (
		v      models.Validator
		status string
	)
	err := row.Scan(&v.ID, &v.PublicKey, &v.Address, &v.Location, &v.Version,
		pq.Array(&v.Capabilities), &status, &v.LastSeen, &v.TotalValidations, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.Status = constants.ValidatorStatus(status)
	return &v, nil
}

func (s *PostgresStore) CreateValidator(ctx context.Context, v *models.Validator) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	if v.LastSeen.IsZero() {
		v.LastSeen = v.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO validators (`+validatorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		v.ID, v.PublicKey, v.Address, v.Location, v.Version, pq.Array(v.Capabilities),
		string(v.Status), v.LastSeen, v.TotalValidations, v.CreatedAt,
	)
	return mapError(err, "creating validator")
}

func (s *PostgresStore) GetValidator(ctx context.Context, id string) (*models.Validator, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	v, err := scanValidator(s.db.QueryRowContext(ctx,
		`SELECT `+validatorColumns+` FROM validators WHERE id = $1`, id))
	return v, mapError(err, "loading validator")
}

func (s *PostgresStore) FindValidatorByPublicKey(ctx context.Context, publicKey string) (*models.Validator, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	v, err := scanValidator(s.db.QueryRowContext(ctx,
		`SELECT `+validatorColumns+` FROM validators WHERE public_key = $1`, publicKey))
	return v, mapError(err, "loading validator by public key")
}

func (s *PostgresStore) FindOnlineValidator(ctx context.Context, address string) (*models.Validator, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	v, err := scanValidator(s.db.QueryRowContext(ctx, `
		SELECT `+validatorColumns+` FROM validators
		WHERE status = $1 AND ($2::text = '' OR address = $2)
		ORDER BY last_seen DESC, id ASC
		LIMIT 1`, string(constants.ValidatorOnline), address))
	return v, mapError(err, "finding online validator")
}

func (s *PostgresStore) ListValidators(ctx context.Context) ([]models.Validator, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+validatorColumns+` FROM validators ORDER BY created_at`)
	if err != nil {
		return nil, mapError(err, "listing validators")
	}
	defer rows.Close()

	out := make([]models.Validator, 0)
	for rows.Next() {
		v, err := scanValidator(rows)
		if err != nil {
			return nil, mapError(err, "scanning validator")
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) execOne(ctx context.Context, what, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err, what)
	}
	return expectRow(res, what)
}

func (s *PostgresStore) MarkValidatorOnline(ctx context.Context, id, address string, at time.Time) error {
	return s.execOne(ctx, "marking validator online", `
		UPDATE validators SET status = $2, last_seen = $3,
			address = CASE WHEN $4::text = '' THEN address ELSE $4 END
		WHERE id = $1`, id, string(constants.ValidatorOnline), at, address)
}

func (s *PostgresStore) MarkValidatorOffline(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "marking validator offline",
		`UPDATE validators SET status = $2, last_seen = $3 WHERE id = $1`,
		id, string(constants.ValidatorOffline), at)
}

func (s *PostgresStore) TouchValidator(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "touching validator",
		`UPDATE validators SET last_seen = $2 WHERE id = $1`, id, at)
}

func (s *PostgresStore) RecordValidation(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "recording validation",
		`UPDATE validators SET total_validations = total_validations + 1, last_seen = $2 WHERE id = $1`, id, at)
}

const targetColumns = `id, url, account_id, disabled, status, last_checked, created_at`

func scanTarget(row rowScanner) (*models.Target, error) {
	var (
		t           models.Target
		status      string
		lastChecked sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.URL, &t.AccountID, &t.Disabled, &status, &lastChecked, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = constants.TickStatus(status)
	if lastChecked.Valid {
		checked := lastChecked.Time
		t.LastChecked = &checked
	}
	return &t, nil
}

func (s *PostgresStore) CreateTarget(ctx context.Context, t *models.Target) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (id, url, account_id, disabled, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.URL, t.AccountID, t.Disabled, string(t.Status), t.CreatedAt)
	return mapError(err, "creating target")
}

func (s *PostgresStore) GetTarget(ctx context.Context, id string) (*models.Target, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	t, err := scanTarget(s.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = $1`, id))
	return t, mapError(err, "loading target")
}

func (s *PostgresStore) queryTargets(ctx context.Context, what, query string, args ...any) ([]models.Target, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, what)
	}
	defer rows.Close()

	out := make([]models.Target, 0)
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, mapError(err, what)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListTargets(ctx context.Context, accountID string) ([]models.Target, error) {
	return s.queryTargets(ctx, "listing targets", `
		SELECT `+targetColumns+` FROM targets
		WHERE account_id = $1 AND NOT disabled
		ORDER BY created_at`, accountID)
}

func (s *PostgresStore) ListEnabledTargets(ctx context.Context) ([]models.Target, error) {
	return s.queryTargets(ctx, "listing enabled targets",
		`SELECT `+targetColumns+` FROM targets WHERE NOT disabled ORDER BY created_at`)
}

func (s *PostgresStore) SetTargetStatus(ctx context.Context, id string, status constants.TickStatus, at time.Time) error {
	return s.execOne(ctx, "updating target status",
		`UPDATE targets SET status = $2, last_checked = $3 WHERE id = $1`, id, string(status), at)
}

func (s *PostgresStore) DisableTarget(ctx context.Context, id string) error {
	return s.execOne(ctx, "disabling target",
		`UPDATE targets SET disabled = TRUE WHERE id = $1`, id)
}

func (s *PostgresStore) AppendTick(ctx context.Context, t *models.Tick) error {
	if err := validateTick(t); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	details, err := json.Marshal(t.Details)
	if err != nil {
		return fmt.Errorf("encoding tick details: %w", err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO ticks (target_id, validator_id, status, latency, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		t.TargetID, t.ValidatorID, string(t.Status), t.Latency, details, t.CreatedAt,
	).Scan(&t.ID)
	return mapError(err, "appending tick")
}

func (s *PostgresStore) queryTicks(ctx context.Context, query string, args ...any) ([]models.Tick, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "querying ticks")
	}
	defer rows.Close()

	out := make([]models.Tick, 0)
	for rows.Next() {
		var (
			t       models.Tick
			status  string
			details []byte
		)
		if err := rows.Scan(&t.ID, &t.TargetID, &t.ValidatorID, &status, &t.Latency, &details, &t.CreatedAt); err != nil {
			return nil, mapError(err, "scanning tick")
		}
		t.Status = constants.TickStatus(status)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &t.Details); err != nil {
				return nil, fmt.Errorf("decoding tick details: %w", err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecentTicks(ctx context.Context, targetID string, limit int) ([]models.Tick, error) {
	query := `
		SELECT id, target_id, validator_id, status, latency, details, created_at FROM ticks
		WHERE target_id = $1
		ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		return s.queryTicks(ctx, query+` LIMIT $2`, targetID, limit)
	}
	return s.queryTicks(ctx, query, targetID)
}

func (s *PostgresStore) TicksSince(ctx context.Context, targetID string, since time.Time) ([]models.Tick, error) {
	return s.queryTicks(ctx, `
		SELECT id, target_id, validator_id, status, latency, details, created_at FROM ticks
		WHERE target_id = $1 AND created_at > $2
		ORDER BY created_at DESC, id DESC`, targetID, since)
}
