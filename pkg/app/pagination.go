package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

var (
	// ErrInvalidPageFormat is returned when the page parameter cannot be parsed as a number.
	ErrInvalidPageFormat = errors.New("invalid page parameter: must be a number")

	// ErrInvalidPageValue is returned when the page parameter is less than 1.
	ErrInvalidPageValue = errors.New("invalid page parameter: must be >= 1")

	// ErrInvalidLimit is returned when the limit parameter is not a positive number.
	ErrInvalidLimit = errors.New("invalid limit parameter: must be a positive number")
)

// ParsePaginationParams extracts and validates the page number from HTTP request query parameters.
// A missing or empty parameter means page 1.
func ParsePaginationParams(r *http.Request) (int, error) {
	pageStr := r.URL.Query().Get("page")
	if pageStr == "" {
		return 1, nil
	}

	page, err := strconv.Atoi(pageStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidPageFormat, err)
	}
	if page < 1 {
		return 0, ErrInvalidPageValue
	}
	return page, nil
}

// ParseLimitParam reads the limit query parameter. 0 means not set.
func ParseLimitParam(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		return 0, ErrInvalidLimit
	}
	return limit, nil
}
