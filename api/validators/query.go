package validators

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
)

// Query reads typed, optional values from a request's query string.
type Query struct {
	values url.Values
}

func QueryOf(r *http.Request) Query {
	return Query{values: r.URL.Query()}
}

func (q Query) raw(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

// Int returns def when key is absent and rejects values outside [min, max].
func (q Query) Int(key string, def, min, max int) (int, error) {
	raw := q.raw(key)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "query parameter must be numeric", nil)
	}
	if value < min || value > max {
		return 0, queryError(key, "query parameter out of range", map[string]any{"min": min, "max": max})
	}
	return value, nil
}

func (q Query) UUID(key string) (*uuid.UUID, error) {
	raw := q.raw(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, queryError(key, "query parameter must be a uuid", nil)
	}
	return &id, nil
}

// Bool accepts the strconv.ParseBool spellings; absent means false.
func (q Query) Bool(key string) (bool, error) {
	raw := q.raw(key)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, queryError(key, "query parameter must be a boolean", nil)
	}
	return value, nil
}

func (q Query) String(key string, maxLen int) string {
	return SanitizeString(q.values.Get(key), maxLen)
}

// SanitizeString trims input and truncates it to maxLen bytes without
// splitting a UTF-8 sequence. maxLen <= 0 disables truncation.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 || len(trimmed) <= maxLen {
		return trimmed
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return strings.TrimSpace(trimmed[:cut])
}

func queryError(key, msg string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}
