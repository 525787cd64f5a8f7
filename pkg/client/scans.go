package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ScanService handles scan history API calls
type ScanService struct {
	client *Client
}

// ScanListOptions narrows a scan listing
type ScanListOptions struct {
	Context   *string
	Namespace *string
	Days      int
	Limit     int
}

// List retrieves recent scans, newest first
func (s *ScanService) List(ctx context.Context, opts *ScanListOptions) ([]Scan, error) {
	query := url.Values{}
	if opts != nil {
		if opts.Context != nil {
			query.Set("context", *opts.Context)
		}
		if opts.Namespace != nil {
			query.Set("namespace", *opts.Namespace)
		}
		if opts.Days > 0 {
			query.Set("days", strconv.Itoa(opts.Days))
		}
		if opts.Limit > 0 {
			query.Set("limit", strconv.Itoa(opts.Limit))
		}
	}

	var result struct {
		Scans []Scan `json:"scans"`
	}
	if err := s.client.get(ctx, "/api/v1/scans", query, &result); err != nil {
		return nil, err
	}
	return result.Scans, nil
}

// Get retrieves one scan with its resource counts
func (s *ScanService) Get(ctx context.Context, id int64) (*ScanDetail, error) {
	var detail ScanDetail
	if err := s.client.get(ctx, fmt.Sprintf("/api/v1/scans/%d", id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Changes retrieves the change records detected by a scan
func (s *ScanService) Changes(ctx context.Context, id int64) ([]ChangeRecord, error) {
	var result struct {
		Changes []ChangeRecord `json:"changes"`
	}
	if err := s.client.get(ctx, fmt.Sprintf("/api/v1/scans/%d/changes", id), nil, &result); err != nil {
		return nil, err
	}
	return result.Changes, nil
}
