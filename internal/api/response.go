package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/tahcohcat/pizzeria-ops/internal/apierr"
	"github.com/tahcohcat/pizzeria-ops/internal/services"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// decode reads a JSON body into v and runs its validate tags.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", services.ErrInvalidInput)
	}
	return validate.Struct(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	apierr.WriteJSON(w, status, payload)
}

func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", services.ErrInvalidInput, name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", services.ErrInvalidInput, name)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be true or false", services.ErrInvalidInput, name)
	}
	return &b, nil
}

// queryRange parses from/to as YYYY-MM-DD or RFC3339. A bare date in "to"
// covers that whole day. Without parameters the last seven days are used.
func queryRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	to := today.AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -7)

	if raw := r.URL.Query().Get("to"); raw != "" {
		t, dateOnly, err := parseTime(raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to: %v", services.ErrInvalidInput, err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		to = t
		from = to.AddDate(0, 0, -7)
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, _, err := parseTime(raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from: %v", services.ErrInvalidInput, err)
		}
		from = t
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be before to", services.ErrInvalidInput)
	}
	return from, to, nil
}

func parseTime(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected YYYY-MM-DD or RFC3339")
	}
	return t.UTC(), false, nil
}
