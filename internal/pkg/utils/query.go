package utils

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
)

// DefaultPageSize is the default number of items per page
const DefaultPageSize = 20

// MaxPageSize is the maximum number of items per page
const MaxPageSize = 100

// QueryInt reads an integer query parameter, falling back to defaultValue
// when it is absent.
func QueryInt(r *http.Request, name string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.BadRequest(fmt.Sprintf("query parameter %q must be an integer", name))
	}
	return i, nil
}

// QueryInt64Ptr reads an optional int64 query parameter
func QueryInt64Ptr(r *http.Request, name string) (*int64, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, errors.BadRequest(fmt.Sprintf("query parameter %q must be an integer", name))
	}
	return &i, nil
}

// QueryStringPtr returns nil for an absent query parameter. A parameter
// present with an empty value yields a pointer to "".
func QueryStringPtr(r *http.Request, name string) *string {
	values, ok := r.URL.Query()[name]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// PageSize reads the limit query parameter, clamped to [1, MaxPageSize]
func PageSize(r *http.Request) (int, error) {
	size, err := QueryInt(r, "limit", DefaultPageSize)
	if err != nil {
		return 0, err
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size, nil
}
