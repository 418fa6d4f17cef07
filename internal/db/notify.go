package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Notifier announces newly archived reports on a PostgreSQL NOTIFY channel
// so downstream dashboards can pick them up without polling.
type Notifier struct {
	DB      *sql.DB
	Channel string
}

// NewNotifier constructs a new Notifier.  The channel should match the
// POSTGRES_NOTIFY_CHANNEL environment variable.
func NewNotifier(db *sql.DB, channel string) *Notifier {
	return &Notifier{DB: db, Channel: channel}
}

// Notify sends the report id as the notification payload.
func (n *Notifier) Notify(ctx context.Context, reportID string) error {
	// NOTIFY takes no bind parameters, so both parts are quoted here.
	stmt := fmt.Sprintf("NOTIFY %s, %s", pq.QuoteIdentifier(n.Channel), pq.QuoteLiteral(reportID))
	_, err := n.DB.ExecContext(ctx, stmt)
	return err
}
