package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/utils"
)

// MaxWindowDays bounds the days query parameter
const MaxWindowDays = 3650

// pathID reads a positive integer URL parameter
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.BadRequest(fmt.Sprintf("invalid %s: %q", name, raw))
	}
	return id, nil
}

// queryDays reads the days query parameter within [1, MaxWindowDays]
func queryDays(r *http.Request, defaultDays int) (int, error) {
	days, err := utils.QueryInt(r, "days", defaultDays)
	if err != nil {
		return 0, err
	}
	if days < 1 || days > MaxWindowDays {
		return 0, errors.BadRequest(fmt.Sprintf("days must be between 1 and %d", MaxWindowDays))
	}
	return days, nil
}

// requiredInt64 reads a mandatory positive integer query parameter
func requiredInt64(r *http.Request, name string) (int64, error) {
	v, err := utils.QueryInt64Ptr(r, name)
	if err != nil {
		return 0, err
	}
	if v == nil || *v < 1 {
		return 0, errors.BadRequest(fmt.Sprintf("query parameter %q is required", name))
	}
	return *v, nil
}
