package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	xerrors "transfer-ever/internal/errors"
)

// MySQLConfig describes the journal database connection.
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// MySQLStore persists runs in the funding_runs table.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects, applies pending migrations and returns the store.
func NewMySQLStore(ctx context.Context, cfg MySQLConfig) (*MySQLStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "open journal database")
	}
	store := &MySQLStore{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "migrate journal database")
	}
	return store, nil
}

func openDatabase(ctx context.Context, cfg MySQLConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, stdErrors.New("mysql dsn is required")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

const upsertRunSQL = `INSERT INTO funding_runs
    (id, command_id, network, requester, asset_code, amount, state, error_code, last_error, activated, trustline_created, submissions, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE requester = VALUES(requester), state = VALUES(state), error_code = VALUES(error_code),
    last_error = VALUES(last_error), activated = VALUES(activated), trustline_created = VALUES(trustline_created),
    submissions = VALUES(submissions), updated_at = VALUES(updated_at)`

const selectRunColumns = `SELECT id, command_id, network, requester, asset_code, amount, state, error_code, last_error,
    activated, trustline_created, submissions, created_at, updated_at FROM funding_runs`

func (s *MySQLStore) Save(ctx context.Context, run *Run) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "run id is required")
	}
	submissions, err := json.Marshal(run.Submissions)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode submissions")
	}
	_, err = s.db.ExecContext(ctx, upsertRunSQL,
		run.ID,
		run.CommandID,
		run.Network,
		run.Requester,
		run.AssetCode,
		run.Amount,
		run.State,
		run.ErrorCode,
		run.LastError,
		run.Activated,
		run.TrustlineCreated,
		string(submissions),
		run.CreatedAt.UnixMilli(),
		run.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "save funding run", xerrors.WithMetadata("run_id", run.ID))
	}
	return nil
}

func (s *MySQLStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRunColumns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "load funding run", xerrors.WithMetadata("run_id", id))
	}
	return run, nil
}

func (s *MySQLStore) ListLatest(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRunColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, NormalizeLimit(limit))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "list funding runs")
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "scan funding run")
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "iterate funding runs")
	}
	return out, nil
}

func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run         Run
		lastError   sql.NullString
		submissions sql.NullString
		createdAt   int64
		updatedAt   int64
	)
	if err := row.Scan(
		&run.ID,
		&run.CommandID,
		&run.Network,
		&run.Requester,
		&run.AssetCode,
		&run.Amount,
		&run.State,
		&run.ErrorCode,
		&lastError,
		&run.Activated,
		&run.TrustlineCreated,
		&submissions,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	run.LastError = lastError.String
	if submissions.Valid && submissions.String != "" && submissions.String != "null" {
		if err := json.Unmarshal([]byte(submissions.String), &run.Submissions); err != nil {
			return nil, fmt.Errorf("decode submissions of %s: %w", run.ID, err)
		}
	}
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	run.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &run, nil
}

var _ Store = (*MySQLStore)(nil)
