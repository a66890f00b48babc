package utils

import (
	"fmt"
	"net/url"
	"strconv"
)

// OffsetParams contains offset-based pagination parameters
type OffsetParams struct {
	Limit  int
	Offset int
}

// ParseOffsetParams reads limit and offset from the query string.
// Missing values take the defaults; non-numeric values are an error so the
// caller can reject the request instead of silently paging.
func ParseOffsetParams(q url.Values, defaultLimit int) (OffsetParams, error) {
	limit, err := parseIntQuery(q.Get("limit"), defaultLimit)
	if err != nil {
		return OffsetParams{}, fmt.Errorf("limit: %w", err)
	}
	offset, err := parseIntQuery(q.Get("offset"), 0)
	if err != nil {
		return OffsetParams{}, fmt.Errorf("offset: %w", err)
	}
	return OffsetParams{Limit: limit, Offset: offset}, nil
}

// HasMore reports whether items remain after the window
func HasMore(p OffsetParams, total int) bool {
	return p.Offset+p.Limit < total
}

// Window returns the [start, end) slice bounds of the page within total items
func Window(p OffsetParams, total int) (int, int) {
	start := p.Offset
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

func parseIntQuery(value string, defaultValue int) (int, error) {
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}
