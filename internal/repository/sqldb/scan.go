package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
)

// ingestChunkSize bounds rows per multi-row INSERT statement
const ingestChunkSize = 200

const defaultRecentLimit = 100

const scanColumns = `id, timestamp, context, namespace, scan_type, total_resources, cluster_version, node_count, cluster_info`

const observationColumns = `id, scan_id, api_version, kind, namespace, name, raw_document, hash, labels, annotations, is_helm_managed, helm_release`

// ScanRepository implements scan.Repository over a relational store
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new scan repository
func NewScanRepository(db *DB) scan.Repository {
	return &ScanRepository{db: db}
}

// BeginScan creates an empty scan row and returns its ID
func (r *ScanRepository) BeginScan(ctx context.Context, s *scan.Scan) (int64, error) {
	id, err := r.insertScan(ctx, r.db, s, s.TotalResources)
	if err != nil {
		return 0, storageErr(fmt.Sprintf("failed to create scan for context %q", s.Context), err)
	}
	s.ID = id
	return id, nil
}

// IngestResources adds observations to an existing scan and bumps its total
func (r *ScanRepository) IngestResources(ctx context.Context, scanID int64, resources []scan.Resource) (int, error) {
	errMissing := errors.NotFound(fmt.Sprintf("Scan %d", scanID))

	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, r.db.rebind(`SELECT 1 FROM scans WHERE id = ?`), scanID).Scan(&exists)
		if err == sql.ErrNoRows {
			return errMissing
		}
		if err != nil {
			return err
		}

		if err := r.insertResources(ctx, tx, scanID, resources); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, r.db.rebind(`
			UPDATE scans SET total_resources = (SELECT COUNT(*) FROM resource_observations WHERE scan_id = ?)
			WHERE id = ?`), scanID, scanID)
		return err
	})
	if err == errMissing {
		return 0, errMissing
	}
	if err != nil {
		return 0, storageErr(fmt.Sprintf("failed to ingest %d resources into scan %d", len(resources), scanID), err)
	}

	return len(resources), nil
}

// CreateWithResources creates a scan and all its observations in one transaction
func (r *ScanRepository) CreateWithResources(ctx context.Context, s *scan.Scan, resources []scan.Resource) (int64, error) {
	var id int64
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = r.insertScan(ctx, tx, s, len(resources))
		if err != nil {
			return err
		}
		return r.insertResources(ctx, tx, id, resources)
	})
	if err != nil {
		return 0, storageErr(fmt.Sprintf("failed to store scan with %d resources for context %q", len(resources), s.Context), err)
	}

	s.ID = id
	s.TotalResources = len(resources)
	return id, nil
}

func (r *ScanRepository) insertScan(ctx context.Context, q execQuerier, s *scan.Scan, total int) (int64, error) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	if s.ScanType == "" {
		s.ScanType = scan.TypeCluster
		if s.Namespace != nil {
			s.ScanType = scan.TypeNamespace
		}
	}

	info, err := encodeJSON(s.ClusterInfo)
	if err != nil {
		return 0, err
	}

	query := `INSERT INTO scans (timestamp, context, namespace, scan_type, total_resources, cluster_version, node_count, cluster_info)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	return r.db.Dialect.InsertReturningID(ctx, q, query,
		r.db.timeValue(s.Timestamp),
		nullString(s.Context),
		optionalString(s.Namespace),
		string(s.ScanType),
		total,
		nullString(s.ClusterVersion),
		s.NodeCount,
		info,
	)
}

// insertResources writes rows in multi-row batches
func (r *ScanRepository) insertResources(ctx context.Context, tx *sql.Tx, scanID int64, resources []scan.Resource) error {
	const columns = 11

	for start := 0; start < len(resources); start += ingestChunkSize {
		end := start + ingestChunkSize
		if end > len(resources) {
			end = len(resources)
		}
		chunk := resources[start:end]

		var b strings.Builder
		b.WriteString(`INSERT INTO resource_observations
			(scan_id, api_version, kind, namespace, name, raw_document, hash, labels, annotations, is_helm_managed, helm_release) VALUES `)

		args := make([]interface{}, 0, len(chunk)*columns)
		for i, res := range chunk {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

			doc, err := json.Marshal(res.Document)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", res.ResourceKey, err)
			}
			labels, err := encodeJSON(res.Labels)
			if err != nil {
				return err
			}
			annotations, err := encodeJSON(res.Annotations)
			if err != nil {
				return err
			}

			args = append(args,
				scanID,
				res.APIVersion,
				res.Kind,
				optionalString(res.NamespacePtr()),
				res.Name,
				string(doc),
				res.Hash,
				labels,
				annotations,
				res.HelmManaged,
				nullString(res.HelmRelease),
			)
		}

		if _, err := tx.ExecContext(ctx, r.db.rebind(b.String()), args...); err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves a scan by ID
func (r *ScanRepository) GetByID(ctx context.Context, id int64) (*scan.Scan, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT `+scanColumns+` FROM scans WHERE id = ?`), id)

	s, err := scanScan(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(fmt.Sprintf("Scan %d", id))
	}
	if err != nil {
		return nil, storageErr(fmt.Sprintf("failed to get scan %d", id), err)
	}
	return s, nil
}

// GetPrevious retrieves the scan recorded just before the given one
func (r *ScanRepository) GetPrevious(ctx context.Context, id int64) (*scan.Scan, error) {
	row := r.db.QueryRowContext(ctx,
		r.db.rebind(`SELECT `+scanColumns+` FROM scans WHERE id < ? ORDER BY id DESC LIMIT 1`), id)
	return r.optionalScan(row, id)
}

// GetPreviousInScope retrieves the latest earlier scan with the same context and namespace
func (r *ScanRepository) GetPreviousInScope(ctx context.Context, id int64, contextName string, namespace *string) (*scan.Scan, error) {
	where := []string{"id < ?"}
	args := []interface{}{id}

	if contextName == "" {
		where = append(where, "context IS NULL")
	} else {
		where = append(where, "context = ?")
		args = append(args, contextName)
	}
	if namespace == nil {
		where = append(where, "namespace IS NULL")
	} else {
		where = append(where, "namespace = ?")
		args = append(args, *namespace)
	}

	query := `SELECT ` + scanColumns + ` FROM scans WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id DESC LIMIT 1`
	return r.optionalScan(r.db.QueryRowContext(ctx, r.db.rebind(query), args...), id)
}

func (r *ScanRepository) optionalScan(row *sql.Row, id int64) (*scan.Scan, error) {
	s, err := scanScan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(fmt.Sprintf("failed to find scan preceding %d", id), err)
	}
	return s, nil
}

// GetResourcesForScan retrieves every observation of a scan
func (r *ScanRepository) GetResourcesForScan(ctx context.Context, scanID int64) ([]scan.Resource, error) {
	rows, err := r.db.QueryContext(ctx,
		r.db.rebind(`SELECT `+observationColumns+` FROM resource_observations WHERE scan_id = ? ORDER BY id`), scanID)
	if err != nil {
		return nil, storageErr(fmt.Sprintf("failed to load resources of scan %d", scanID), err)
	}
	defer rows.Close()

	var resources []scan.Resource
	for rows.Next() {
		res, err := scanObservation(rows)
		if err != nil {
			return nil, storageErr(fmt.Sprintf("failed to read resource of scan %d", scanID), err)
		}
		resources = append(resources, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(fmt.Sprintf("failed to load resources of scan %d", scanID), err)
	}
	return resources, nil
}

// GetRecentScans lists scans newest first
func (r *ScanRepository) GetRecentScans(ctx context.Context, filter scan.RecentFilter) ([]*scan.Scan, error) {
	where := []string{"1=1"}
	var args []interface{}

	if filter.Context != nil {
		where = append(where, "context = ?")
		args = append(args, *filter.Context)
	}
	if filter.Namespace != nil {
		where = append(where, "namespace = ?")
		args = append(args, *filter.Namespace)
	}
	if filter.SinceDays > 0 {
		where = append(where, "timestamp >= ?")
		args = append(args, r.db.timeValue(time.Now().AddDate(0, 0, -filter.SinceDays)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	args = append(args, limit)

	query := `SELECT ` + scanColumns + ` FROM scans WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY timestamp DESC, id DESC LIMIT ?`
	return r.listScans(ctx, "failed to list recent scans", query, args...)
}

// GetScansInRange lists scans within a time window, newest first
func (r *ScanRepository) GetScansInRange(ctx context.Context, start, end time.Time, contextName *string) ([]*scan.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE timestamp >= ? AND timestamp <= ?`
	args := []interface{}{r.db.timeValue(start), r.db.timeValue(end)}

	if contextName != nil {
		query += ` AND context = ?`
		args = append(args, *contextName)
	}
	query += ` ORDER BY timestamp DESC, id DESC`

	msg := fmt.Sprintf("failed to list scans between %s and %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	return r.listScans(ctx, msg, query, args...)
}

func (r *ScanRepository) listScans(ctx context.Context, msg, query string, args ...interface{}) ([]*scan.Scan, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, storageErr(msg, err)
	}
	defer rows.Close()

	var scans []*scan.Scan
	for rows.Next() {
		s, err := scanScan(rows)
		if err != nil {
			return nil, storageErr(msg, err)
		}
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(msg, err)
	}
	return scans, nil
}

// FindResourceHistory retrieves every observation of one resource since a time
func (r *ScanRepository) FindResourceHistory(ctx context.Context, key scan.ResourceKey, since time.Time) ([]scan.HistoryEntry, error) {
	query := `SELECT o.id, o.scan_id, o.api_version, o.kind, o.namespace, o.name, o.raw_document, o.hash,
			o.labels, o.annotations, o.is_helm_managed, o.helm_release, s.timestamp, s.context
		FROM resource_observations o
		JOIN scans s ON s.id = o.scan_id
		WHERE o.api_version = ? AND o.kind = ? AND o.name = ? AND s.timestamp >= ?`
	args := []interface{}{key.APIVersion, key.Kind, key.Name, r.db.timeValue(since)}

	if key.Namespaced {
		query += ` AND o.namespace = ?`
		args = append(args, key.Namespace)
	} else {
		query += ` AND o.namespace IS NULL`
	}
	query += ` ORDER BY s.timestamp ASC, s.id ASC`

	msg := fmt.Sprintf("failed to load history of %s", key)
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, storageErr(msg, err)
	}
	defer rows.Close()

	var entries []scan.HistoryEntry
	for rows.Next() {
		var (
			entry  scan.HistoryEntry
			ts     dbTime
			scanCx sql.NullString
		)
		res, err := scanObservation(rows, &ts, &scanCx)
		if err != nil {
			return nil, storageErr(msg, err)
		}
		entry.ScanID = res.ScanID
		entry.ScanTimestamp = ts.Time
		entry.Context = scanCx.String
		entry.Resource = *res
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(msg, err)
	}
	return entries, nil
}

// CountByKind counts the observations of a scan per kind
func (r *ScanRepository) CountByKind(ctx context.Context, scanID int64) (map[string]int, error) {
	return r.countBy(ctx, scanID, "kind")
}

// CountByNamespace counts the observations of a scan per namespace
func (r *ScanRepository) CountByNamespace(ctx context.Context, scanID int64) (map[string]int, error) {
	return r.countBy(ctx, scanID, "namespace")
}

func (r *ScanRepository) countBy(ctx context.Context, scanID int64, column string) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM resource_observations WHERE scan_id = ? GROUP BY %s`, column, column)

	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), scanID)
	if err != nil {
		return nil, storageErr(fmt.Sprintf("failed to count resources of scan %d by %s", scanID, column), err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var value sql.NullString
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, storageErr(fmt.Sprintf("failed to count resources of scan %d by %s", scanID, column), err)
		}
		label := value.String
		if !value.Valid {
			label = clusterScopedLabel
		}
		counts[label] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(fmt.Sprintf("failed to count resources of scan %d by %s", scanID, column), err)
	}
	return counts, nil
}

// Summary aggregates scan activity since a time
func (r *ScanRepository) Summary(ctx context.Context, since time.Time, limit int) (*scan.Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	sinceVal := r.db.timeValue(since)
	summary := &scan.Summary{
		Since:                since,
		MostActiveNamespaces: []scan.NamespaceActivity{},
		MostChangedResources: []scan.ResourceChurn{},
		ClusterVersions:      []scan.VersionSighting{},
	}

	var first, last dbTime
	err := r.db.QueryRowContext(ctx,
		r.db.rebind(`SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM scans WHERE timestamp >= ?`), sinceVal).
		Scan(&summary.TotalScans, &first, &last)
	if err != nil {
		return nil, storageErr("failed to summarize scans", err)
	}
	if first.Valid {
		summary.FirstScan = &first.Time
	}
	if last.Valid {
		summary.LastScan = &last.Time
	}

	nsRows, err := r.db.QueryContext(ctx, r.db.rebind(`
		SELECT o.namespace, COUNT(*) AS cnt
		FROM resource_observations o JOIN scans s ON s.id = o.scan_id
		WHERE s.timestamp >= ? AND o.namespace IS NOT NULL
		GROUP BY o.namespace
		ORDER BY cnt DESC, o.namespace ASC
		LIMIT ?`), sinceVal, limit)
	if err != nil {
		return nil, storageErr("failed to summarize namespace activity", err)
	}
	for nsRows.Next() {
		var a scan.NamespaceActivity
		if err := nsRows.Scan(&a.Namespace, &a.Count); err != nil {
			nsRows.Close()
			return nil, storageErr("failed to summarize namespace activity", err)
		}
		summary.MostActiveNamespaces = append(summary.MostActiveNamespaces, a)
	}
	nsRows.Close()

	churnRows, err := r.db.QueryContext(ctx, r.db.rebind(`
		SELECT o.api_version, o.kind, o.namespace, o.name, COUNT(DISTINCT o.hash) AS versions
		FROM resource_observations o JOIN scans s ON s.id = o.scan_id
		WHERE s.timestamp >= ?
		GROUP BY o.api_version, o.kind, o.namespace, o.name
		HAVING COUNT(DISTINCT o.hash) > 1
		ORDER BY versions DESC, o.kind ASC, o.name ASC
		LIMIT ?`), sinceVal, limit)
	if err != nil {
		return nil, storageErr("failed to summarize resource churn", err)
	}
	for churnRows.Next() {
		var (
			apiVersion, kind, name string
			namespace              sql.NullString
			versions               int
		)
		if err := churnRows.Scan(&apiVersion, &kind, &namespace, &name, &versions); err != nil {
			churnRows.Close()
			return nil, storageErr("failed to summarize resource churn", err)
		}
		summary.MostChangedResources = append(summary.MostChangedResources, scan.ResourceChurn{
			ResourceKey: scan.NewKey(apiVersion, kind, stringPtr(namespace), name),
			Versions:    versions,
		})
	}
	churnRows.Close()
	sort.SliceStable(summary.MostChangedResources, func(i, j int) bool {
		a, b := summary.MostChangedResources[i], summary.MostChangedResources[j]
		if a.Versions != b.Versions {
			return a.Versions > b.Versions
		}
		return a.ResourceKey.Compare(b.ResourceKey) < 0
	})

	verRows, err := r.db.QueryContext(ctx, r.db.rebind(`
		SELECT cluster_version, MIN(timestamp) AS first_seen, MAX(timestamp), COUNT(*)
		FROM scans
		WHERE timestamp >= ? AND cluster_version IS NOT NULL
		GROUP BY cluster_version
		ORDER BY first_seen ASC`), sinceVal)
	if err != nil {
		return nil, storageErr("failed to summarize cluster versions", err)
	}
	defer verRows.Close()
	for verRows.Next() {
		var (
			v           scan.VersionSighting
			first, last dbTime
		)
		if err := verRows.Scan(&v.Version, &first, &last, &v.Scans); err != nil {
			return nil, storageErr("failed to summarize cluster versions", err)
		}
		v.FirstSeen, v.LastSeen = first.Time, last.Time
		summary.ClusterVersions = append(summary.ClusterVersions, v)
	}
	if err := verRows.Err(); err != nil {
		return nil, storageErr("failed to summarize cluster versions", err)
	}

	return summary, nil
}

// DeleteScansOlderThan removes scans before the cutoff with their observations and change records
func (r *ScanRepository) DeleteScansOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffVal := r.db.timeValue(cutoff)
	var deleted int64

	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		const oldScans = `SELECT id FROM scans WHERE timestamp < ?`

		if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM change_records
			WHERE old_scan_id IN (`+oldScans+`) OR new_scan_id IN (`+oldScans+`)`), cutoffVal, cutoffVal); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM resource_observations
			WHERE scan_id IN (`+oldScans+`)`), cutoffVal); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM scans WHERE timestamp < ?`), cutoffVal)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, storageErr(fmt.Sprintf("failed to delete scans older than %s", cutoff.Format(time.RFC3339)), err)
	}

	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScan(row rowScanner) (*scan.Scan, error) {
	var (
		s              scan.Scan
		ts             dbTime
		contextName    sql.NullString
		namespace      sql.NullString
		scanType       string
		clusterVersion sql.NullString
		clusterInfo    sql.NullString
	)

	if err := row.Scan(&s.ID, &ts, &contextName, &namespace, &scanType, &s.TotalResources,
		&clusterVersion, &s.NodeCount, &clusterInfo); err != nil {
		return nil, err
	}

	s.Timestamp = ts.Time
	s.Context = contextName.String
	s.Namespace = stringPtr(namespace)
	s.ScanType = scan.ScanType(scanType)
	s.ClusterVersion = clusterVersion.String
	if err := decodeJSON(clusterInfo, &s.ClusterInfo); err != nil {
		return nil, err
	}

	return &s, nil
}

// scanObservation reads observationColumns followed by any extra destinations
func scanObservation(row rowScanner, extra ...interface{}) (*scan.Resource, error) {
	var (
		res         scan.Resource
		apiVersion  string
		kind        string
		namespace   sql.NullString
		name        string
		document    sql.NullString
		labels      sql.NullString
		annotations sql.NullString
		helmRelease sql.NullString
	)

	dest := []interface{}{&res.ID, &res.ScanID, &apiVersion, &kind, &namespace, &name, &document,
		&res.Hash, &labels, &annotations, &res.HelmManaged, &helmRelease}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	res.ResourceKey = scan.NewKey(apiVersion, kind, stringPtr(namespace), name)
	res.HelmRelease = helmRelease.String
	if err := decodeJSON(document, &res.Document); err != nil {
		return nil, err
	}
	if err := decodeJSON(labels, &res.Labels); err != nil {
		return nil, err
	}
	if err := decodeJSON(annotations, &res.Annotations); err != nil {
		return nil, err
	}

	return &res, nil
}
