package workspaces

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTenant(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("success with creator", func(t *testing.T) {
		creatorID := int64(10)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM tenants WHERE name = \$1 AND status = 'normal'`).
			WithArgs("Engineering").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO tenants`).
			WithArgs("Engineering", &creatorID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, now))
		mock.ExpectExec(`INSERT INTO tenant_members`).
			WithArgs(int64(5), creatorID, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tenant, err := service.CreateTenant(ctx, "  Engineering ", &creatorID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), tenant.ID)
		assert.Equal(t, "Engineering", tenant.Name)
		assert.Equal(t, TenantNormal, tenant.Status)
		require.NotNil(t, tenant.CreatedBy)
		assert.Equal(t, creatorID, *tenant.CreatedBy)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success without creator", func(t *testing.T) {
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM tenants WHERE name = \$1 AND status = 'normal'`).
			WithArgs("Ops").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO tenants`).
			WithArgs("Ops", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(6, now))
		mock.ExpectCommit()

		tenant, err := service.CreateTenant(ctx, "Ops", nil)
		require.NoError(t, err)
		assert.Nil(t, tenant.CreatedBy)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate name", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM tenants WHERE name = \$1 AND status = 'normal'`).
			WithArgs("Engineering").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectRollback()

		_, err := service.CreateTenant(ctx, "Engineering", nil)
		assert.ErrorIs(t, err, ErrDuplicateName)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := service.CreateTenant(ctx, "   ", nil)
		assert.ErrorIs(t, err, ErrInvalidName)

		long := make([]byte, 101)
		for i := range long {
			long[i] = 'x'
		}
		_, err = service.CreateTenant(ctx, string(long), nil)
		assert.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("provisioner failure does not fail creation", func(t *testing.T) {
		// The tenant row is committed before provisioning runs; failing the
		// call afterwards would make a retry collide with the committed row.
		failing := NewPostgresService(db, failingProvisioner{})
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM tenants WHERE name = \$1 AND status = 'normal'`).
			WithArgs("Research").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO tenants`).
			WithArgs("Research", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, now))
		mock.ExpectCommit()

		tenant, err := failing.CreateTenant(ctx, "Research", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(7), tenant.ID)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

type failingProvisioner struct{}

func (failingProvisioner) ProvisionTenant(ctx context.Context, tenantID int64) error {
	return errors.New("provisioner unavailable")
}

func TestDeleteTenant(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("default tenant protected", func(t *testing.T) {
		tenantID := int64(1)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM tenants WHERE id = \$1 FOR UPDATE`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("normal"))
		mock.ExpectQuery(`SELECT id FROM tenants`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tenantID))
		mock.ExpectRollback()

		err := service.DeleteTenant(ctx, tenantID)
		assert.ErrorIs(t, err, ErrDefaultTenant)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("multiple members rejected", func(t *testing.T) {
		tenantID := int64(4)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM tenants WHERE id = \$1 FOR UPDATE`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("normal"))
		mock.ExpectQuery(`SELECT id FROM tenants`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tenant_members WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectRollback()

		err := service.DeleteTenant(ctx, tenantID)
		assert.ErrorIs(t, err, ErrHasMultipleMembers)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sole membership removed and tenant archived", func(t *testing.T) {
		tenantID := int64(4)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM tenants WHERE id = \$1 FOR UPDATE`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("normal"))
		mock.ExpectQuery(`SELECT id FROM tenants`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tenant_members WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectExec(`DELETE FROM tenant_members WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE tenants SET status = 'archived'`).
			WithArgs(tenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.DeleteTenant(ctx, tenantID)
		require.NoError(t, err)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty tenant archived without member delete", func(t *testing.T) {
		tenantID := int64(9)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM tenants WHERE id = \$1 FOR UPDATE`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("normal"))
		mock.ExpectQuery(`SELECT id FROM tenants`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tenant_members WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`UPDATE tenants SET status = 'archived'`).
			WithArgs(tenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.DeleteTenant(ctx, tenantID)
		require.NoError(t, err)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing tenant", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM tenants WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := service.DeleteTenant(ctx, 99)
		assert.ErrorIs(t, err, ErrTenantNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already archived", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM tenants WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("archived"))
		mock.ExpectRollback()

		err := service.DeleteTenant(ctx, 7)
		assert.ErrorIs(t, err, ErrTenantNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsCreator(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("creator match", func(t *testing.T) {
		mock.ExpectQuery(`SELECT t.created_by`).
			WithArgs(int64(1), int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"created_by"}).AddRow(10))

		ok, err := service.IsCreator(ctx, 1, 10)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("owner but different creator", func(t *testing.T) {
		mock.ExpectQuery(`SELECT t.created_by`).
			WithArgs(int64(1), int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"created_by"}).AddRow(99))

		ok, err := service.IsCreator(ctx, 1, 10)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("legacy tenant without creator tracking", func(t *testing.T) {
		mock.ExpectQuery(`SELECT t.created_by`).
			WithArgs(int64(1), int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"created_by"}).AddRow(nil))

		ok, err := service.IsCreator(ctx, 1, 10)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no owner membership", func(t *testing.T) {
		mock.ExpectQuery(`SELECT t.created_by`).
			WithArgs(int64(1), int64(10)).
			WillReturnError(sql.ErrNoRows)

		ok, err := service.IsCreator(ctx, 1, 10)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestListTenants(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("grouped member counts", func(t *testing.T) {
		now := time.Now()

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tenants`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectQuery(`SELECT t.id, t.name, t.status, t.created_by, t.created_at, COUNT\(m.id\)`).
			WithArgs(20, 0).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "created_by", "created_at", "count"}).
				AddRow(1, "Default", "normal", nil, now, 5).
				AddRow(2, "Engineering", "normal", 10, now, 2))

		tenants, total, err := service.ListTenants(ctx, ListTenantsParams{Page: 1, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, tenants, 2)
		assert.Equal(t, int64(5), tenants[0].MemberCount)
		assert.Nil(t, tenants[0].CreatedBy)
		require.NotNil(t, tenants[1].CreatedBy)
		assert.Equal(t, int64(10), *tenants[1].CreatedBy)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("created-by filter", func(t *testing.T) {
		creatorID := int64(10)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tenants`).
			WithArgs(creatorID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`SELECT t.id, t.name, t.status`).
			WithArgs(creatorID, 20, 0).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "created_by", "created_at", "count"}).
				AddRow(2, "Engineering", "normal", creatorID, time.Now(), 2))

		tenants, total, err := service.ListTenants(ctx, ListTenantsParams{Page: 1, Limit: 20, CreatedBy: &creatorID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, tenants, 1)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}
