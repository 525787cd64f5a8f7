package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
)

const changeColumns = `c.id, c.timestamp, c.api_version, c.kind, c.namespace, c.name, c.change_type, c.old_scan_id, c.new_scan_id, c.diff, c.summary`

// ChangeRepository implements change.Repository over a relational store
type ChangeRepository struct {
	db *DB
}

// NewChangeRepository creates a new change repository
func NewChangeRepository(db *DB) change.Repository {
	return &ChangeRepository{db: db}
}

// ReplaceForPair replaces the change records of a scan pair
func (r *ChangeRepository) ReplaceForPair(ctx context.Context, scanA, scanB int64, records []change.Record) error {
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM change_records
			WHERE (old_scan_id = ? AND new_scan_id = ?) OR (old_scan_id = ? AND new_scan_id = ?)`),
			scanA, scanB, scanB, scanA)
		if err != nil {
			return err
		}

		query := `INSERT INTO change_records
			(timestamp, api_version, kind, namespace, name, change_type, old_scan_id, new_scan_id, diff, summary)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		for i := range records {
			rec := &records[i]
			if rec.DetectedAt.IsZero() {
				rec.DetectedAt = time.Now().UTC()
			}

			var diff interface{}
			if len(rec.Diff) > 0 {
				if diff, err = encodeJSON(rec.Diff); err != nil {
					return err
				}
			}

			var oldID interface{}
			if rec.OldScanID != nil {
				oldID = *rec.OldScanID
			}

			id, err := r.db.Dialect.InsertReturningID(ctx, tx, query,
				r.db.timeValue(rec.DetectedAt),
				rec.APIVersion,
				rec.Kind,
				optionalString(rec.NamespacePtr()),
				rec.Name,
				string(rec.ChangeType),
				oldID,
				rec.NewScanID,
				diff,
				nullString(rec.Summary),
			)
			if err != nil {
				return err
			}
			rec.ID = id
		}
		return nil
	})
	if err != nil {
		return storageErr(fmt.Sprintf("failed to store %d change records for scans %d and %d", len(records), scanA, scanB), err)
	}
	return nil
}

// ListForScan retrieves the change records of a scan
func (r *ChangeRepository) ListForScan(ctx context.Context, scanID int64) ([]change.Record, error) {
	query := `SELECT ` + changeColumns + ` FROM change_records c WHERE c.new_scan_id = ? ORDER BY c.id`
	return r.list(ctx, fmt.Sprintf("failed to list changes of scan %d", scanID), query, scanID)
}

// ListRecent lists change records matching a filter, newest first
func (r *ChangeRepository) ListRecent(ctx context.Context, filter change.Filter) ([]change.Record, error) {
	where, args := r.where(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	args = append(args, limit)

	query := `SELECT ` + changeColumns + ` FROM change_records c JOIN scans s ON s.id = c.new_scan_id
		WHERE ` + where + ` ORDER BY c.timestamp DESC, c.id DESC LIMIT ?`
	return r.list(ctx, "failed to list recent changes", query, args...)
}

// Statistics aggregates change records matching a filter
func (r *ChangeRepository) Statistics(ctx context.Context, filter change.Filter) (*change.Statistics, error) {
	stats := &change.Statistics{
		ByType:      make(map[string]int),
		ByNamespace: make(map[string]int),
		ByKind:      make(map[string]int),
	}

	where, args := r.where(filter)
	groups := []struct {
		column string
		into   map[string]int
	}{
		{"c.change_type", stats.ByType},
		{"c.namespace", stats.ByNamespace},
		{"c.kind", stats.ByKind},
	}

	for _, g := range groups {
		query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM change_records c JOIN scans s ON s.id = c.new_scan_id
			WHERE %s GROUP BY %s`, g.column, where, g.column)

		rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
		if err != nil {
			return nil, storageErr("failed to compute change statistics", err)
		}
		for rows.Next() {
			var value sql.NullString
			var count int
			if err := rows.Scan(&value, &count); err != nil {
				rows.Close()
				return nil, storageErr("failed to compute change statistics", err)
			}
			label := value.String
			if !value.Valid {
				label = clusterScopedLabel
			}
			g.into[label] = count
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, storageErr("failed to compute change statistics", err)
		}
	}

	for _, n := range stats.ByType {
		stats.Total += n
	}
	return stats, nil
}

func (r *ChangeRepository) where(filter change.Filter) (string, []interface{}) {
	where := []string{"1=1"}
	var args []interface{}

	if !filter.Since.IsZero() {
		where = append(where, "c.timestamp >= ?")
		args = append(args, r.db.timeValue(filter.Since))
	}
	if filter.Context != nil {
		where = append(where, "s.context = ?")
		args = append(args, *filter.Context)
	}
	return strings.Join(where, " AND "), args
}

func (r *ChangeRepository) list(ctx context.Context, msg, query string, args ...interface{}) ([]change.Record, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, storageErr(msg, err)
	}
	defer rows.Close()

	var records []change.Record
	for rows.Next() {
		rec, err := scanChange(rows)
		if err != nil {
			return nil, storageErr(msg, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(msg, err)
	}
	return records, nil
}

func scanChange(row rowScanner) (*change.Record, error) {
	var (
		rec        change.Record
		ts         dbTime
		apiVersion string
		kind       string
		namespace  sql.NullString
		name       string
		changeType string
		oldScanID  sql.NullInt64
		diff       sql.NullString
		summary    sql.NullString
	)

	if err := row.Scan(&rec.ID, &ts, &apiVersion, &kind, &namespace, &name, &changeType,
		&oldScanID, &rec.NewScanID, &diff, &summary); err != nil {
		return nil, err
	}

	rec.DetectedAt = ts.Time
	rec.ResourceKey = scan.NewKey(apiVersion, kind, stringPtr(namespace), name)
	rec.ChangeType = change.Type(changeType)
	if oldScanID.Valid {
		id := oldScanID.Int64
		rec.OldScanID = &id
	}
	rec.Summary = summary.String
	if err := decodeJSON(diff, &rec.Diff); err != nil {
		return nil, err
	}

	return &rec, nil
}
