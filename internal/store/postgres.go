package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/wordforge/wordforge/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so ledger helpers
// can run standalone or inside a settlement transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// --- Users & ledger ---

const userColumns = `id, email, recurring_balance, onetime_balance, free_balance,
	recurring_plan, lifetime_plan, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.RecurringBalance, &u.OneTimeBalance, &u.FreeBalance,
		&u.RecurringPlan, &u.LifetimePlan, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, recurring_balance, onetime_balance, free_balance,
		   recurring_plan, lifetime_plan, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.RecurringBalance, user.OneTimeBalance, user.FreeBalance,
		user.RecurringPlan, user.LifetimePlan, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func bucketColumn(bucket models.CreditBucket) (string, error) {
	switch bucket {
	case models.BucketRecurring:
		return "recurring_balance", nil
	case models.BucketOneTime:
		return "onetime_balance", nil
	case models.BucketFree:
		return "free_balance", nil
	}
	return "", fmt.Errorf("unknown credit bucket %q", bucket)
}

func (s *PostgresStore) AdjustBalance(ctx context.Context, userID uuid.UUID, bucket models.CreditBucket, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		balance, err = adjustBalanceTx(ctx, tx, userID, bucket, delta)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// adjustBalanceTx performs the row-locked read-modify-write for one bucket.
// The new balance is rounded to one decimal place after the arithmetic,
// never before, so fractional tier costs cannot drift.
func adjustBalanceTx(ctx context.Context, q querier, userID uuid.UUID, bucket models.CreditBucket, delta decimal.Decimal) (decimal.Decimal, error) {
	col, err := bucketColumn(bucket)
	if err != nil {
		return decimal.Zero, err
	}

	var current decimal.Decimal
	err = q.QueryRow(ctx,
		`SELECT `+col+` FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock user balance: %w", err)
	}

	next := current.Add(delta).Round(1)
	if next.IsNegative() {
		return decimal.Zero, ErrInsufficientFunds
	}

	_, err = q.Exec(ctx,
		`UPDATE users SET `+col+` = $2, updated_at = NOW() WHERE id = $1`, userID, next)
	if err != nil {
		return decimal.Zero, fmt.Errorf("update user balance: %w", err)
	}
	return next, nil
}

// --- API keys ---

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, scopes,
	last_used_at, deleted_at, created_at, updated_at`

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys
		 WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Batches ---

const batchColumns = `id, user_id, tier, total_units, completed_count, pending_count,
	failed_count, status, start_process, word_limit, instructions, created_at, updated_at`

func scanBatch(row pgx.Row) (*models.Batch, error) {
	var b models.Batch
	err := row.Scan(&b.ID, &b.UserID, &b.Tier, &b.TotalUnits, &b.CompletedCount, &b.PendingCount,
		&b.FailedCount, &b.Status, &b.StartProcess, &b.WordLimit, &b.Instructions, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, creation BatchCreation) error {
	b := creation.Batch
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if d := creation.Debit; d != nil {
			if _, err := adjustBalanceTx(ctx, tx, d.UserID, d.Bucket, d.Amount.Neg()); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO batches (id, user_id, tier, total_units, completed_count, pending_count,
			   failed_count, status, start_process, word_limit, instructions, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			b.ID, b.UserID, b.Tier, b.TotalUnits, b.CompletedCount, b.PendingCount,
			b.FailedCount, b.Status, b.StartProcess, b.WordLimit, b.Instructions, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		for _, u := range creation.Units {
			_, err := tx.Exec(ctx,
				`INSERT INTO generation_units (id, batch_id, user_id, keyword, tier,
				   request_process, status, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				u.ID, u.BatchID, u.UserID, u.Keyword, u.Tier,
				u.RequestProcess, u.Status, u.CreatedAt, u.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert generation unit: %w", err)
			}
		}

		for _, t := range creation.Trackers {
			_, err := tx.Exec(ctx,
				`INSERT INTO dispatch_trackers (id, batch_id, user_id, unit_id, keyword,
				   retry_attempted, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				t.ID, t.BatchID, t.UserID, t.UnitID, t.Keyword, t.RetryAttempted, t.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert dispatch tracker: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	b, err := scanBatch(s.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBatchesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Batch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*models.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *PostgresStore) OldestStaleBatch(ctx context.Context, before time.Time) (*models.Batch, error) {
	b, err := scanBatch(s.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches
		 WHERE status = $1 AND start_process = TRUE AND updated_at < $2
		 ORDER BY updated_at ASC LIMIT 1`, models.BatchStatusOpen, before))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("oldest stale batch: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListStartedBatches(ctx context.Context) ([]*models.Batch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM batches
		 WHERE status = $1 AND start_process = TRUE ORDER BY created_at ASC`, models.BatchStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("list started batches: %w", err)
	}
	defer rows.Close()

	var batches []*models.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *PostgresStore) MarkBatchStarted(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE batches SET start_process = TRUE, updated_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("mark batch started: %w", err)
	}
	return nil
}

// --- Generation units ---

const unitColumns = `id, batch_id, user_id, keyword, tier, content, meta_title,
	meta_description, image_url, request_process, status, created_at, updated_at`

func scanUnit(row pgx.Row) (*models.GenerationUnit, error) {
	var u models.GenerationUnit
	err := row.Scan(&u.ID, &u.BatchID, &u.UserID, &u.Keyword, &u.Tier, &u.Content, &u.MetaTitle,
		&u.MetaDescription, &u.ImageURL, &u.RequestProcess, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetUnit(ctx context.Context, id uuid.UUID) (*models.GenerationUnit, error) {
	u, err := scanUnit(s.pool.QueryRow(ctx,
		`SELECT `+unitColumns+` FROM generation_units WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUnitsByBatch(ctx context.Context, batchID uuid.UUID) ([]*models.GenerationUnit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+unitColumns+` FROM generation_units WHERE batch_id = $1 ORDER BY created_at ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list units by batch: %w", err)
	}
	defer rows.Close()

	var units []*models.GenerationUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *PostgresStore) SelectUndispatchedUnits(ctx context.Context, limit int) ([]*models.GenerationUnit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+unitColumns+` FROM generation_units
		 WHERE request_process = FALSE AND status = $1
		 ORDER BY created_at ASC LIMIT $2`, models.UnitStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("select undispatched units: %w", err)
	}
	defer rows.Close()

	var units []*models.GenerationUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *PostgresStore) CountUndispatchedUnits(ctx context.Context, batchID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM generation_units
		 WHERE batch_id = $1 AND request_process = FALSE AND status = $2`,
		batchID, models.UnitStatusPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count undispatched units: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) SetUnitDispatched(ctx context.Context, id uuid.UUID, dispatched bool) (bool, error) {
	// Conditional write: the flag only flips when it currently holds the
	// opposite value, so overlapping invocations cannot both claim (or both
	// release) the same unit.
	tag, err := s.pool.Exec(ctx,
		`UPDATE generation_units SET request_process = $2, updated_at = NOW()
		 WHERE id = $1 AND request_process <> $2`,
		id, dispatched)
	if err != nil {
		return false, fmt.Errorf("set unit dispatched: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetUnitContent(ctx context.Context, id uuid.UUID, content UnitContent) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE generation_units SET content = $2, meta_title = $3, meta_description = $4,
		   image_url = $5, updated_at = NOW()
		 WHERE id = $1`,
		id, content.Content, content.MetaTitle, content.MetaDescription, content.ImageURL)
	if err != nil {
		return fmt.Errorf("set unit content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Trackers / settlement ---

func (s *PostgresStore) BatchWorkset(ctx context.Context, batchID uuid.UUID) ([]models.TrackedUnit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.id, t.batch_id, t.user_id, t.unit_id, t.keyword, t.retry_attempted, t.created_at,
		        u.id, u.batch_id, u.user_id, u.keyword, u.tier, u.content, u.meta_title,
		        u.meta_description, u.image_url, u.request_process, u.status, u.created_at, u.updated_at
		 FROM dispatch_trackers t
		 JOIN generation_units u ON u.id = t.unit_id
		 WHERE t.batch_id = $1
		 ORDER BY t.created_at ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch workset: %w", err)
	}
	defer rows.Close()

	var workset []models.TrackedUnit
	for rows.Next() {
		var tu models.TrackedUnit
		t := &tu.Tracker
		u := &tu.Unit
		if err := rows.Scan(&t.ID, &t.BatchID, &t.UserID, &t.UnitID, &t.Keyword, &t.RetryAttempted, &t.CreatedAt,
			&u.ID, &u.BatchID, &u.UserID, &u.Keyword, &u.Tier, &u.Content, &u.MetaTitle,
			&u.MetaDescription, &u.ImageURL, &u.RequestProcess, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tracked unit: %w", err)
		}
		workset = append(workset, tu)
	}
	return workset, rows.Err()
}

func (s *PostgresStore) CountTrackers(ctx context.Context, batchID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM dispatch_trackers WHERE batch_id = $1`, batchID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trackers: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ApplySettlement(ctx context.Context, st Settlement) ([]uuid.UUID, error) {
	var escalated []uuid.UUID
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Lock the batch row; concurrent settlements of the same batch
		// serialize here.
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM batches WHERE id = $1 FOR UPDATE`, st.BatchID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock batch: %w", err)
		}
		if status == models.BatchStatusClosed {
			// Terminal batches are never reopened; replays are no-ops.
			return nil
		}

		if ids := uuidStrings(st.CompleteUnitIDs); len(ids) > 0 {
			_, err := tx.Exec(ctx,
				`UPDATE generation_units SET status = $2, updated_at = $3 WHERE id = ANY($1::uuid[])`,
				ids, models.UnitStatusComplete, st.Now)
			if err != nil {
				return fmt.Errorf("complete units: %w", err)
			}
		}
		if ids := uuidStrings(st.FailUnitIDs); len(ids) > 0 {
			_, err := tx.Exec(ctx,
				`UPDATE generation_units SET status = $2, updated_at = $3 WHERE id = ANY($1::uuid[])`,
				ids, models.UnitStatusFailed, st.Now)
			if err != nil {
				return fmt.Errorf("fail units: %w", err)
			}
		}
		if ids := uuidStrings(st.DeleteTrackerIDs); len(ids) > 0 {
			_, err := tx.Exec(ctx,
				`DELETE FROM dispatch_trackers WHERE id = ANY($1::uuid[])`, ids)
			if err != nil {
				return fmt.Errorf("delete trackers: %w", err)
			}
		}
		if ids := uuidStrings(st.EscalateTrackerIDs); len(ids) > 0 {
			// The conditional update doubles as the retry gate: a tracker
			// another settlement already escalated is not returned, so its
			// re-dispatch stays with that settlement.
			rows, err := tx.Query(ctx,
				`UPDATE dispatch_trackers SET retry_attempted = TRUE
				 WHERE id = ANY($1::uuid[]) AND retry_attempted = FALSE
				 RETURNING id`, ids)
			if err != nil {
				return fmt.Errorf("escalate trackers: %w", err)
			}
			escalated, err = scanIDs(rows)
			if err != nil {
				return fmt.Errorf("scan escalated trackers: %w", err)
			}
		}

		if r := st.Refund; r != nil && r.Amount.IsPositive() {
			// Resolve the refund bucket under the user row lock so plan
			// changes racing with settlement cannot split a refund.
			user, err := scanUser(tx.QueryRow(ctx,
				`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, r.UserID))
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("lock refund user: %w", err)
			}
			if _, err := adjustBalanceTx(ctx, tx, r.UserID, user.PriorityBucket(), r.Amount); err != nil {
				return fmt.Errorf("apply refund: %w", err)
			}
		}

		query := `UPDATE batches SET completed_count = $2, pending_count = $3, failed_count = $4, status = $5`
		args := []any{st.BatchID, st.CompletedCount, st.PendingCount, st.FailedCount, batchStatus(st.Close)}
		if st.Touch {
			query += `, updated_at = $6`
			args = append(args, st.Now)
		}
		query += ` WHERE id = $1`
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("apply settlement: %w", err)
	}
	return escalated, nil
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func batchStatus(closed bool) string {
	if closed {
		return models.BatchStatusClosed
	}
	return models.BatchStatusOpen
}

func uuidStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
