package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// orphansQuery finds identities older than the grace cutoff that no users
// document refers to, neither by key nor by uid field.
const orphansQuery = `
SELECT i.uid, i.email FROM identities i
 WHERE i.created_at < $1
   AND NOT EXISTS (
       SELECT 1 FROM documents d
        WHERE d.collection = 'users'
          AND (d.key = i.uid OR d.data->>'uid' = i.uid)
   )
 ORDER BY i.created_at
`

// StartOrphanReporter periodically logs identities that never got an
// account record, which happens when the record write after account
// creation fails. It only reports; nothing is deleted.
func StartOrphanReporter(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	grace time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := reportOrphans(ctx, db, time.Now().Add(-grace), log)
				if err != nil {
					log.Error("failed to scan for orphaned identities", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Warn("identities without account record", zap.Int("count", n))
				}
			}
		}
	}()
}

func reportOrphans(ctx context.Context, db *sql.DB, cutoff time.Time, log *zap.Logger) (int, error) {
	rows, err := db.QueryContext(ctx, orphansQuery, cutoff)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var uid, email string
		if err := rows.Scan(&uid, &email); err != nil {
			return n, err
		}
		log.Warn("orphaned identity", zap.String("uid", uid), zap.String("email", email))
		n++
	}
	return n, rows.Err()
}
