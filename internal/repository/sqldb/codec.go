package sqldb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
)

// clusterScopedLabel stands in for NULL namespaces in grouped counts
const clusterScopedLabel = "(cluster)"

func storageErr(message string, err error) error {
	return errors.StorageUnavailable(message, err)
}

// encodeJSON returns nil for empty values so the column stays NULL
func encodeJSON(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		if len(val) == 0 {
			return nil, nil
		}
	case map[string]interface{}:
		if len(val) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeJSON(src sql.NullString, dst interface{}) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(src.String), dst); err != nil {
		return fmt.Errorf("failed to decode stored json: %w", err)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func optionalString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
