package client

import (
	"context"
	"net/url"
	"strconv"
)

// AnalysisService handles drift, timeline, comparison and health API calls
type AnalysisService struct {
	client *Client
}

// DriftOptions selects the window and baseline of a drift report
type DriftOptions struct {
	Context    string
	Days       int
	BaselineID *int64
}

// Compare diffs scan b against scan a
func (s *AnalysisService) Compare(ctx context.Context, a, b int64) (*Comparison, error) {
	query := url.Values{}
	query.Set("a", strconv.FormatInt(a, 10))
	query.Set("b", strconv.FormatInt(b, 10))

	var cmp Comparison
	if err := s.client.get(ctx, "/api/v1/compare", query, &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

// Drift retrieves a drift report
func (s *AnalysisService) Drift(ctx context.Context, opts DriftOptions) (*DriftReport, error) {
	query := url.Values{}
	if opts.Context != "" {
		query.Set("context", opts.Context)
	}
	if opts.Days > 0 {
		query.Set("days", strconv.Itoa(opts.Days))
	}
	if opts.BaselineID != nil {
		query.Set("baseline", strconv.FormatInt(*opts.BaselineID, 10))
	}

	var report DriftReport
	if err := s.client.get(ctx, "/api/v1/drift", query, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Timeline retrieves the observations of one resource. A key with
// Namespaced false selects a cluster-scoped resource.
func (s *AnalysisService) Timeline(ctx context.Context, key ResourceKey, days int) (*Timeline, error) {
	query := url.Values{}
	query.Set("api_version", key.APIVersion)
	query.Set("kind", key.Kind)
	query.Set("name", key.Name)
	if key.Namespaced {
		query.Set("namespace", key.Namespace)
	}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}

	var timeline Timeline
	if err := s.client.get(ctx, "/api/v1/timeline", query, &timeline); err != nil {
		return nil, err
	}
	return &timeline, nil
}

// Health retrieves the health report of a context
func (s *AnalysisService) Health(ctx context.Context, contextName string, days int) (*HealthReport, error) {
	query := url.Values{}
	if contextName != "" {
		query.Set("context", contextName)
	}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}

	var report HealthReport
	if err := s.client.get(ctx, "/api/v1/health", query, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
