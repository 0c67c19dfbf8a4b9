package accounts

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch(t *testing.T) {
	service, mock, db, _ := newMockService(t)
	defer db.Close()
	ctx := context.Background()

	operatorID := int64(2)

	t.Run("single fetch partitions eligible and rejected", func(t *testing.T) {
		// A eligible, B is the operator, X does not exist. Exactly one
		// query fetches all three.
		mock.ExpectQuery(`SELECT id, system_role, status FROM accounts WHERE id = ANY\(\$1\)`).
			WithArgs(pq.Array([]int64{1, 2, 99})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "system_role", "status"}).
				AddRow(1, "user", "active").
				AddRow(2, "user", "active"))
		mock.ExpectExec(`UPDATE accounts SET status = \$3`).
			WithArgs(pq.Array([]int64{1}), operatorID, StatusBanned).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.Batch(ctx, []int64{1, 2, 99}, BatchDisable, operatorID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Processed)
		assert.Equal(t, int64(2), result.Failed)
		require.Len(t, result.ItemErrors, 2)
		assert.Equal(t, BatchItemError{AccountID: 2, Reason: ReasonOperator}, result.ItemErrors[0])
		assert.Equal(t, BatchItemError{AccountID: 99, Reason: ReasonNotFound}, result.ItemErrors[1])

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("system admins rejected per item", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, system_role, status FROM accounts WHERE id = ANY\(\$1\)`).
			WithArgs(pq.Array([]int64{1, 3})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "system_role", "status"}).
				AddRow(1, "user", "active").
				AddRow(3, "system_admin", "active"))
		mock.ExpectExec(`UPDATE accounts SET status = \$3`).
			WithArgs(pq.Array([]int64{1}), operatorID, StatusActive).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.Batch(ctx, []int64{1, 3}, BatchEnable, operatorID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Processed)
		assert.Equal(t, int64(1), result.Failed)
		assert.Equal(t, BatchItemError{AccountID: 3, Reason: ReasonSystemAdmin}, result.ItemErrors[0])

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete runs bulk membership delete then bulk account delete", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, system_role, status FROM accounts WHERE id = ANY\(\$1\)`).
			WithArgs(pq.Array([]int64{5, 6})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "system_role", "status"}).
				AddRow(5, "user", "active").
				AddRow(6, nil, "banned"))
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM tenant_members WHERE account_id IN`).
			WithArgs(pq.Array([]int64{5, 6}), operatorID).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(`DELETE FROM accounts`).
			WithArgs(pq.Array([]int64{5, 6}), operatorID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		result, err := service.Batch(ctx, []int64{5, 6}, BatchDelete, operatorID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Processed)
		assert.Equal(t, int64(0), result.Failed)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid action fails whole batch with zero processing", func(t *testing.T) {
		_, err := service.Batch(ctx, []int64{1, 2}, "purge", operatorID)
		assert.ErrorIs(t, err, ErrInvalidAction)
	})

	t.Run("bulk statement failure reports zero processed", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, system_role, status FROM accounts WHERE id = ANY\(\$1\)`).
			WithArgs(pq.Array([]int64{1})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "system_role", "status"}).
				AddRow(1, "user", "active"))
		mock.ExpectExec(`UPDATE accounts SET status = \$3`).
			WillReturnError(assert.AnError)

		_, err := service.Batch(ctx, []int64{1}, BatchDisable, operatorID)
		require.Error(t, err)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate ids collapse", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, system_role, status FROM accounts WHERE id = ANY\(\$1\)`).
			WithArgs(pq.Array([]int64{1, 1})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "system_role", "status"}).
				AddRow(1, "user", "active"))
		mock.ExpectExec(`UPDATE accounts SET status = \$3`).
			WithArgs(pq.Array([]int64{1}), operatorID, StatusBanned).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.Batch(ctx, []int64{1, 1}, BatchDisable, operatorID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Processed)
		assert.Equal(t, int64(0), result.Failed)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty id list is a no-op", func(t *testing.T) {
		result, err := service.Batch(ctx, nil, BatchDisable, operatorID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), result.Processed)
		assert.Equal(t, int64(0), result.Failed)
	})
}
