// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock connection.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore is the durable RunStore backing multi-process deployments,
// where the control plane writes signals the driver polls.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ RunStore = (*PostgresStore)(nil)

// NewPostgresStore connects to the DSN and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return NewPostgresStoreWithPool(ctx, pool, logger)
}

// NewPostgresStoreWithPool wraps an existing pool, for tests.
func NewPostgresStoreWithPool(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("store")}, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, runID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, user_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())`,
		runID, userID, string(schemas.RunPending))
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, runID string, status schemas.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $2, updated_at = now() WHERE id = $1`,
		runID, string(status))
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unknown run %s", runID)
	}
	return nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, entry schemas.RunLogEntry) error {
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode log metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_logs (run_id, level, message, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.RunID, entry.Level, entry.Message, payload, entry.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}
	return nil
}

func (s *PostgresStore) PollSignals(ctx context.Context, runID string) (schemas.RunSignals, error) {
	var sig schemas.RunSignals
	// RETURNING sees the post-update row, so the pending instruction is
	// captured in a CTE before the clear.
	err := s.pool.QueryRow(ctx,
		`WITH old AS (
		     SELECT cancel_requested, redirect_instruction
		     FROM run_signals WHERE run_id = $1 FOR UPDATE
		 )
		 UPDATE run_signals s
		 SET redirect_instruction = ''
		 FROM old
		 WHERE s.run_id = $1
		 RETURNING old.cancel_requested, old.redirect_instruction`,
		runID).Scan(&sig.CancelRequested, &sig.RedirectInstruction)
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.RunSignals{}, nil
	}
	if err != nil {
		return schemas.RunSignals{}, fmt.Errorf("failed to poll run signals: %w", err)
	}
	return sig, nil
}

func (s *PostgresStore) AccessToken(ctx context.Context, userID, service string) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		`SELECT token FROM service_tokens WHERE user_id = $1 AND service = $2`,
		userID, service).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load access token: %w", err)
	}
	return token, nil
}

func (s *PostgresStore) FineTunedModel(ctx context.Context, userID, tier string) (string, error) {
	var model string
	err := s.pool.QueryRow(ctx,
		`SELECT model FROM fine_tuned_models WHERE user_id = $1 AND tier = $2`,
		userID, tier).Scan(&model)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load tuned model: %w", err)
	}
	return model, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
