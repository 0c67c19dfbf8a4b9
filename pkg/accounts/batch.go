package accounts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/atriumhq/atrium/pkg/roles"
)

// Batch applies one action to many accounts without per-row queries: one
// fetch of all requested ids, an in-memory partition into eligible and
// rejected, then one bulk statement against the eligible set. The bulk WHERE
// re-states the eligibility predicate so a row that changed between
// partition and execute time is still never processed wrongly. An invalid
// action fails the whole call with zero processing.
func (s *PostgresService) Batch(ctx context.Context, accountIDs []int64, action BatchAction, operatorID int64) (*BatchResult, error) {
	switch action {
	case BatchEnable, BatchDisable, BatchDelete:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	result := &BatchResult{}
	if len(accountIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, system_role, status FROM accounts WHERE id = ANY($1)`,
		pq.Array(accountIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	defer rows.Close()

	type fetched struct {
		role   roles.SystemRole
		status Status
	}
	found := make(map[int64]fetched, len(accountIDs))
	for rows.Next() {
		var id int64
		var systemRole sql.NullString
		var status Status
		if err := rows.Scan(&id, &systemRole, &status); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		found[id] = fetched{role: roles.Resolve(systemRole.String), status: status}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	var eligible []int64
	seen := make(map[int64]bool, len(accountIDs))
	for _, id := range accountIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		account, ok := found[id]
		switch {
		case !ok:
			result.ItemErrors = append(result.ItemErrors, BatchItemError{AccountID: id, Reason: ReasonNotFound})
		case id == operatorID:
			result.ItemErrors = append(result.ItemErrors, BatchItemError{AccountID: id, Reason: ReasonOperator})
		case account.role == roles.RoleSystemAdmin:
			result.ItemErrors = append(result.ItemErrors, BatchItemError{AccountID: id, Reason: ReasonSystemAdmin})
		default:
			eligible = append(eligible, id)
		}
	}
	result.Failed = int64(len(result.ItemErrors))

	if len(eligible) == 0 {
		return result, nil
	}

	// Safety net: the WHERE repeats the partition rules at execute time.
	const guard = `id = ANY($1)
		  AND id <> $2
		  AND (system_role IS NULL OR system_role <> 'system_admin')`

	switch action {
	case BatchEnable, BatchDisable:
		status := StatusActive
		if action == BatchDisable {
			status = StatusBanned
		}
		res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
			UPDATE accounts SET status = $3
			WHERE %s
		`, guard), pq.Array(eligible), operatorID, status)
		if err != nil {
			return nil, fmt.Errorf("failed to update accounts: %w", err)
		}
		processed, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		result.Processed = processed

	case BatchDelete:
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM tenant_members WHERE account_id IN (
				SELECT id FROM accounts WHERE %s
			)
		`, guard), pq.Array(eligible), operatorID)
		if err != nil {
			return nil, fmt.Errorf("failed to delete memberships: %w", err)
		}

		res, err := tx.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM accounts
			WHERE %s
		`, guard), pq.Array(eligible), operatorID)
		if err != nil {
			return nil, fmt.Errorf("failed to delete accounts: %w", err)
		}
		processed, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		result.Processed = processed
	}

	return result, nil
}
