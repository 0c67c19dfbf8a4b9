package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UsageCollector refreshes the business gauges from the database. It is
// driven by a cron schedule in the server binary rather than on request
// paths so listing-heavy deployments do not pay per-request count queries.
type UsageCollector struct {
	db      *sql.DB
	metrics *Metrics
	logger  *Logger
}

// NewUsageCollector creates a usage collector
func NewUsageCollector(db *sql.DB, metrics *Metrics, logger *Logger) *UsageCollector {
	return &UsageCollector{
		db:      db,
		metrics: metrics,
		logger:  logger,
	}
}

// Refresh recomputes all business gauges. Errors are logged, not returned,
// so the cron runner keeps its schedule.
func (c *UsageCollector) Refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.refresh(ctx); err != nil {
		c.logger.WithError(err).Warn("Failed to refresh usage stats")
	}

	stats := c.db.Stats()
	c.metrics.DBConnectionsActive.Set(float64(stats.InUse))
	c.metrics.DBConnectionsIdle.Set(float64(stats.Idle))
}

func (c *UsageCollector) refresh(ctx context.Context) error {
	var accounts, active, banned, tenants, memberships int64

	err := c.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM accounts WHERE status = 'active'),
			(SELECT COUNT(*) FROM accounts WHERE status = 'banned'),
			(SELECT COUNT(*) FROM tenants WHERE status = 'normal'),
			(SELECT COUNT(*) FROM tenant_members)
	`).Scan(&accounts, &active, &banned, &tenants, &memberships)
	if err != nil {
		return fmt.Errorf("failed to query usage counts: %w", err)
	}

	c.metrics.AccountsTotal.Set(float64(accounts))
	c.metrics.ActiveAccountsTotal.Set(float64(active))
	c.metrics.BannedAccountsTotal.Set(float64(banned))
	c.metrics.TenantsTotal.Set(float64(tenants))
	c.metrics.MembershipsTotal.Set(float64(memberships))

	return nil
}
