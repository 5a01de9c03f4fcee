package postgres

import (
	"context"
	"fmt"

	"github.com/swap357/cirunner/pkg/types"
)

// Load returns all stage records of the namespace.
func (s *Store) Load(ctx context.Context) (types.StateDocument, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stage_key, COALESCE(run_id, 0), completed, COALESCE(conclusion, '')
		FROM ci_stage_state
		WHERE namespace = $1
	`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	doc := types.StateDocument{}
	for rows.Next() {
		var (
			key        string
			rec        types.StageRecord
			conclusion string
		)
		if err := rows.Scan(&key, &rec.RunID, &rec.Completed, &conclusion); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		rec.Conclusion = types.Conclusion(conclusion)
		doc[key] = rec
	}
	return doc, rows.Err()
}

// Save replaces the namespace's rows with doc in a single transaction.
func (s *Store) Save(ctx context.Context, doc types.StateDocument) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin state tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM ci_stage_state WHERE namespace = $1`, s.namespace); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}

	for key, rec := range doc {
		_, err := tx.Exec(ctx, `
			INSERT INTO ci_stage_state (namespace, stage_key, run_id, completed, conclusion, updated_at)
			VALUES ($1, $2, NULLIF($3::BIGINT, 0), $4, NULLIF($5::TEXT, ''), NOW())
		`, s.namespace, key, rec.RunID, rec.Completed, string(rec.Conclusion))
		if err != nil {
			return fmt.Errorf("insert state %s: %w", key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}
