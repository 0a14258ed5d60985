// Package repository holds the persistence capabilities consumed by services. Each role is a
// separate interface so a service can be composed with exactly the capabilities it needs.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates no live record matched the identifier.
var ErrNotFound = errors.New("repository: record not found")

// ErrInvalidFilter indicates a malformed or unsupported filter expression.
var ErrInvalidFilter = errors.New("repository: invalid filter")

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Creator persists new records.
type Creator[T any] interface {
	Create(ctx context.Context, entity *T) error
}

// Reader loads a single record by identifier, returning ErrNotFound when absent.
type Reader[T any] interface {
	FindByID(ctx context.Context, id int64) (*T, error)
}

// Updater applies column updates and returns the reloaded record.
type Updater[T any] interface {
	Update(ctx context.Context, id int64, updates map[string]any) (*T, error)
}

// Deleter removes a record, returning ErrNotFound when absent.
type Deleter interface {
	Delete(ctx context.Context, id int64) error
}

// Lister pages through records.
type Lister[T any] interface {
	List(ctx context.Context, opts ListOptions) (Page[T], error)
}

// CRUD bundles every role for services that need the full set.
type CRUD[T any] interface {
	Creator[T]
	Reader[T]
	Updater[T]
	Deleter
	Lister[T]
}

// Filter is an equality condition on a single column.
type Filter struct {
	Field string
	Value string
}

// ListOptions controls pagination and filtering.
type ListOptions struct {
	Page     int
	PageSize int
	Filters  []Filter
}

// Normalised clamps page and page size to sane bounds.
func (o ListOptions) Normalised() ListOptions {
	if o.Page <= 0 {
		o.Page = 1
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.PageSize > maxPageSize {
		o.PageSize = maxPageSize
	}
	return o
}

// IsDefault reports whether o asks for the unfiltered first page at the default size.
func (o ListOptions) IsDefault() bool {
	o = o.Normalised()
	return o.Page == 1 && o.PageSize == defaultPageSize && len(o.Filters) == 0
}

// Page is one slice of a listing.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// ParseFilters parses "field:value,field:value". Only the first colon separates field from value,
// so values may contain colons. Fields outside allowed are rejected.
func ParseFilters(raw string, allowed ...string) ([]Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	permitted := make(map[string]struct{}, len(allowed))
	for _, field := range allowed {
		permitted[field] = struct{}{}
	}

	var filters []Filter
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, value, ok := strings.Cut(part, ":")
		field = strings.TrimSpace(field)
		value = strings.TrimSpace(value)
		if !ok || field == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, part)
		}
		if _, ok := permitted[field]; !ok {
			return nil, fmt.Errorf("%w: unsupported field %q", ErrInvalidFilter, field)
		}
		filters = append(filters, Filter{Field: field, Value: value})
	}
	return filters, nil
}
