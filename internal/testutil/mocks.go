package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
)

// MockScanRepository wraps a real scan.Repository and lets tests inject
// failures per method. A nil error delegates to the wrapped repository.
type MockScanRepository struct {
	scan.Repository

	mu           sync.Mutex
	RecentError  error
	RangeError   error
	GetError     error
	CreateError  error
	HistoryError error
	Calls        map[string]int
}

func NewMockScanRepository(inner scan.Repository) *MockScanRepository {
	return &MockScanRepository{Repository: inner, Calls: make(map[string]int)}
}

func (m *MockScanRepository) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
}

func (m *MockScanRepository) GetRecentScans(ctx context.Context, filter scan.RecentFilter) ([]*scan.Scan, error) {
	m.record("GetRecentScans")
	if m.RecentError != nil {
		return nil, m.RecentError
	}
	return m.Repository.GetRecentScans(ctx, filter)
}

func (m *MockScanRepository) GetScansInRange(ctx context.Context, start, end time.Time, contextName *string) ([]*scan.Scan, error) {
	m.record("GetScansInRange")
	if m.RangeError != nil {
		return nil, m.RangeError
	}
	return m.Repository.GetScansInRange(ctx, start, end, contextName)
}

func (m *MockScanRepository) GetByID(ctx context.Context, id int64) (*scan.Scan, error) {
	m.record("GetByID")
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.Repository.GetByID(ctx, id)
}

func (m *MockScanRepository) CreateWithResources(ctx context.Context, s *scan.Scan, resources []scan.Resource) (int64, error) {
	m.record("CreateWithResources")
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	return m.Repository.CreateWithResources(ctx, s, resources)
}

func (m *MockScanRepository) FindResourceHistory(ctx context.Context, key scan.ResourceKey, since time.Time) ([]scan.HistoryEntry, error) {
	m.record("FindResourceHistory")
	if m.HistoryError != nil {
		return nil, m.HistoryError
	}
	return m.Repository.FindResourceHistory(ctx, key, since)
}

// MockChangeRepository is an in-memory change.Repository
type MockChangeRepository struct {
	mu          sync.Mutex
	Records     []change.Record
	NextID      int64
	ReplaceErr  error
	ListErr     error
	ReplaceCall int
}

func NewMockChangeRepository() *MockChangeRepository {
	return &MockChangeRepository{NextID: 1}
}

func (m *MockChangeRepository) ReplaceForPair(ctx context.Context, scanA, scanB int64, records []change.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReplaceCall++
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}

	kept := m.Records[:0]
	for _, rec := range m.Records {
		if rec.OldScanID != nil && pairMatches(*rec.OldScanID, rec.NewScanID, scanA, scanB) {
			continue
		}
		kept = append(kept, rec)
	}
	m.Records = kept

	for i := range records {
		records[i].ID = m.NextID
		m.NextID++
		m.Records = append(m.Records, records[i])
	}
	return nil
}

func (m *MockChangeRepository) ListForScan(ctx context.Context, scanID int64) ([]change.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []change.Record
	for _, rec := range m.Records {
		if rec.NewScanID == scanID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MockChangeRepository) ListRecent(ctx context.Context, filter change.Filter) ([]change.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []change.Record
	for i := len(m.Records) - 1; i >= 0; i-- {
		rec := m.Records[i]
		if !filter.Since.IsZero() && rec.DetectedAt.Before(filter.Since) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *MockChangeRepository) Statistics(ctx context.Context, filter change.Filter) (*change.Statistics, error) {
	records, err := m.ListRecent(ctx, change.Filter{Since: filter.Since})
	if err != nil {
		return nil, err
	}
	stats := &change.Statistics{
		ByType:      make(map[string]int),
		ByNamespace: make(map[string]int),
		ByKind:      make(map[string]int),
	}
	for _, rec := range records {
		stats.Total++
		stats.ByType[string(rec.ChangeType)]++
		stats.ByNamespace[rec.Namespace]++
		stats.ByKind[rec.Kind]++
	}
	return stats, nil
}

func pairMatches(oldID, newID, a, b int64) bool {
	return (oldID == a && newID == b) || (oldID == b && newID == a)
}
