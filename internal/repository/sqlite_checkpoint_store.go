package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"FinGAN/internal/domain/models"
	domrepo "FinGAN/internal/domain/repository"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    status      TEXT     NOT NULL,
    symbols     TEXT     NOT NULL DEFAULT '[]',
    timeframe   TEXT     NOT NULL DEFAULT '',
    lookback    INTEGER  NOT NULL DEFAULT 0,
    epochs      INTEGER  NOT NULL DEFAULT 0,
    windows     INTEGER  NOT NULL DEFAULT 0,
    skipped     TEXT     NOT NULL DEFAULT '[]',
    error       TEXT     NOT NULL DEFAULT '',
    evaluation  TEXT,
    created_at  DATETIME NOT NULL,
    finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS checkpoints (
    run_id           TEXT     NOT NULL REFERENCES runs(id),
    epoch            INTEGER  NOT NULL,
    critic_loss      REAL,
    generator_loss   REAL,
    gradient_penalty REAL,
    gradient_norm    REAL,
    steps            INTEGER  NOT NULL DEFAULT 0,
    generator        BLOB,
    critic           BLOB,
    preprocessor     BLOB,
    created_at       DATETIME NOT NULL,
    PRIMARY KEY (run_id, epoch)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

// SQLiteCheckpointStore implements CheckpointStore on a single SQLite file.
// Reports are kept for every epoch; parameter blobs only for the last
// retain epochs of a run when retain > 0.
type SQLiteCheckpointStore struct {
	db     *sql.DB
	retain int
}

// NewSQLiteCheckpointStore opens (or creates) the database at path and
// applies the schema.
func NewSQLiteCheckpointStore(path string, retain int) (*SQLiteCheckpointStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(checkpointSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply checkpoint schema: %w", err)
	}
	return &SQLiteCheckpointStore{db: db, retain: retain}, nil
}

func (s *SQLiteCheckpointStore) CreateRun(ctx context.Context, run *models.TrainingRun) error {
	symbols, skipped, eval, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO runs (id, status, symbols, timeframe, lookback, epochs, windows, skipped, error, evaluation, created_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), symbols, run.Timeframe, run.Lookback, run.Epochs, run.Windows,
		skipped, run.Error, eval, run.CreatedAt.UTC(), nullTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteCheckpointStore) UpdateRun(ctx context.Context, run *models.TrainingRun) error {
	symbols, skipped, eval, err := encodeRun(run)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE runs SET status = ?, symbols = ?, timeframe = ?, lookback = ?, epochs = ?, windows = ?,
            skipped = ?, error = ?, evaluation = ?, finished_at = ?
        WHERE id = ?`,
		string(run.Status), symbols, run.Timeframe, run.Lookback, run.Epochs, run.Windows,
		skipped, run.Error, eval, nullTime(run.FinishedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, domrepo.ErrNotFound)
	}
	return nil
}

const runColumns = `id, status, symbols, timeframe, lookback, epochs, windows, skipped, error, evaluation, created_at, finished_at`

func (s *SQLiteCheckpointStore) GetRun(ctx context.Context, id string) (*models.TrainingRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row, id)
}

func (s *SQLiteCheckpointStore) LatestRun(ctx context.Context, status models.RunStatus) (*models.TrainingRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, string(status))
	return scanRun(row, "latest "+string(status))
}

func (s *SQLiteCheckpointStore) SaveCheckpoint(ctx context.Context, cp *models.Checkpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save checkpoint: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	r := cp.Report
	created := cp.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO checkpoints (run_id, epoch, critic_loss, generator_loss, gradient_penalty, gradient_norm,
            steps, generator, critic, preprocessor, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, epoch) DO UPDATE SET
            critic_loss = excluded.critic_loss,
            generator_loss = excluded.generator_loss,
            gradient_penalty = excluded.gradient_penalty,
            gradient_norm = excluded.gradient_norm,
            steps = excluded.steps,
            generator = excluded.generator,
            critic = excluded.critic,
            preprocessor = excluded.preprocessor,
            created_at = excluded.created_at`,
		cp.RunID, r.Epoch, nullFloat(r.CriticLoss), nullFloat(r.GeneratorLoss), nullFloat(r.GradientPenalty),
		nullFloat(r.MeanGradientNorm), r.Steps, cp.Generator, cp.Critic, cp.Preprocessor, created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %s/%d: %w", cp.RunID, r.Epoch, err)
	}
	if s.retain > 0 {
		_, err = tx.ExecContext(ctx, `
            UPDATE checkpoints SET generator = NULL, critic = NULL, preprocessor = NULL
            WHERE run_id = ? AND epoch <= ?`, cp.RunID, r.Epoch-s.retain)
		if err != nil {
			return fmt.Errorf("prune checkpoints %s: %w", cp.RunID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save checkpoint: commit: %w", err)
	}
	return nil
}

func (s *SQLiteCheckpointStore) LatestCheckpoint(ctx context.Context, runID string) (*models.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT epoch, critic_loss, generator_loss, gradient_penalty, gradient_norm, steps,
            generator, critic, preprocessor, created_at
        FROM checkpoints
        WHERE run_id = ? AND generator IS NOT NULL
        ORDER BY epoch DESC LIMIT 1`, runID)

	cp := &models.Checkpoint{RunID: runID}
	var c, g, p, n sql.NullFloat64
	err := row.Scan(&cp.Report.Epoch, &c, &g, &p, &n, &cp.Report.Steps,
		&cp.Generator, &cp.Critic, &cp.Preprocessor, &cp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkpoint for run %s: %w", runID, domrepo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint %s: %w", runID, err)
	}
	cp.Report.CriticLoss, cp.Report.GeneratorLoss = floatOrNaN(c), floatOrNaN(g)
	cp.Report.GradientPenalty, cp.Report.MeanGradientNorm = floatOrNaN(p), floatOrNaN(n)
	return cp, nil
}

func (s *SQLiteCheckpointStore) ListReports(ctx context.Context, runID string) ([]models.EpochReport, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT epoch, critic_loss, generator_loss, gradient_penalty, gradient_norm, steps
        FROM checkpoints WHERE run_id = ? ORDER BY epoch ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list reports %s: %w", runID, err)
	}
	defer rows.Close()

	var out []models.EpochReport
	for rows.Next() {
		var r models.EpochReport
		var c, g, p, n sql.NullFloat64
		if err := rows.Scan(&r.Epoch, &c, &g, &p, &n, &r.Steps); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.CriticLoss, r.GeneratorLoss = floatOrNaN(c), floatOrNaN(g)
		r.GradientPenalty, r.MeanGradientNorm = floatOrNaN(p), floatOrNaN(n)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteCheckpointStore) Close() error {
	return s.db.Close()
}

func scanRun(row *sql.Row, key string) (*models.TrainingRun, error) {
	var (
		run              models.TrainingRun
		status           string
		symbols, skipped string
		eval             sql.NullString
		finished         sql.NullTime
	)
	err := row.Scan(&run.ID, &status, &symbols, &run.Timeframe, &run.Lookback, &run.Epochs, &run.Windows,
		&skipped, &run.Error, &eval, &run.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", key, domrepo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run %s: %w", key, err)
	}
	run.Status = models.RunStatus(status)
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	if err := json.Unmarshal([]byte(symbols), &run.Symbols); err != nil {
		return nil, fmt.Errorf("decode run symbols: %w", err)
	}
	if err := json.Unmarshal([]byte(skipped), &run.Skipped); err != nil {
		return nil, fmt.Errorf("decode run skipped: %w", err)
	}
	if eval.Valid && eval.String != "" {
		run.Evaluation = &models.Evaluation{}
		if err := json.Unmarshal([]byte(eval.String), run.Evaluation); err != nil {
			return nil, fmt.Errorf("decode run evaluation: %w", err)
		}
	}
	return &run, nil
}

func encodeRun(run *models.TrainingRun) (symbols, skipped string, eval sql.NullString, err error) {
	sb, err := json.Marshal(nonNil(run.Symbols))
	if err != nil {
		return "", "", eval, fmt.Errorf("encode symbols: %w", err)
	}
	kb, err := json.Marshal(nonNil(run.Skipped))
	if err != nil {
		return "", "", eval, fmt.Errorf("encode skipped: %w", err)
	}
	if run.Evaluation != nil {
		eb, err := json.Marshal(run.Evaluation)
		if err != nil {
			return "", "", eval, fmt.Errorf("encode evaluation: %w", err)
		}
		eval = sql.NullString{String: string(eb), Valid: true}
	}
	return string(sb), string(kb), eval, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// nullFloat stores non-finite values as NULL; SQLite has no NaN.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
