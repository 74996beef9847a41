package domain

import "time"

// PageSize is the fixed number of users returned per list page.
const PageSize = 50

// SortField identifies a column users may be ordered by. Only values in
// the allow-list survive validation; anything else is rejected upstream.
type SortField string

const (
	SortByUsername            SortField = "username"
	SortByEmail               SortField = "email"
	SortByChips               SortField = "chips"
	SortByGems                SortField = "gems"
	SortByCreatedAt           SortField = "created_at"
	SortByLastLogin           SortField = "last_login"
	SortByFailedLoginAttempts SortField = "failed_login_attempts"
)

var allowedSortFields = map[SortField]bool{
	SortByUsername:            true,
	SortByEmail:               true,
	SortByChips:               true,
	SortByGems:                true,
	SortByCreatedAt:           true,
	SortByLastLogin:           true,
	SortByFailedLoginAttempts: true,
}

// ValidSortField reports whether the field is in the allow-list.
func ValidSortField(f SortField) bool {
	return allowedSortFields[f]
}

// SortDirection controls ordering of list results.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// IntRange is an optional closed interval over an integer column. Either
// bound may be present alone.
type IntRange struct {
	Min *int64
	Max *int64
}

// IsSet reports whether at least one bound is present.
func (r IntRange) IsSet() bool {
	return r.Min != nil || r.Max != nil
}

// TimeRange is an optional closed interval over a timestamp column.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// IsSet reports whether at least one bound is present.
func (r TimeRange) IsSet() bool {
	return r.Start != nil || r.End != nil
}

// UserFilter accumulates the optional predicates of a list request. It is
// built once per request from validated query parameters and compiled into
// a single SQL statement by the repository.
type UserFilter struct {
	Username      string
	Email         string
	IsActive      *bool
	IsAdmin       *bool
	AccountLocked *bool

	Chips IntRange
	Gems  IntRange

	CreatedAt          TimeRange
	LastLogin          TimeRange
	LastFreeChipsClaim TimeRange

	SortBy    SortField
	Direction SortDirection
	Page      int
}

// NewUserFilter returns a filter with list defaults applied: first page,
// newest accounts first.
func NewUserFilter() UserFilter {
	return UserFilter{
		SortBy:    SortByCreatedAt,
		Direction: SortDesc,
		Page:      1,
	}
}

// Offset computes the row offset for the configured page.
func (f UserFilter) Offset() uint64 {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return uint64(page-1) * PageSize
}

// Pagination describes the position of a page within the full result set.
// Everything is derived from the total count; no extra queries are needed.
type Pagination struct {
	CurrentPage     int   `json:"current_page"`
	TotalPages      int   `json:"total_pages"`
	TotalItems      int64 `json:"total_items"`
	HasNextPage     bool  `json:"has_next_page"`
	HasPreviousPage bool  `json:"has_previous_page"`
	ItemsPerPage    int   `json:"items_per_page"`
}

// NewPagination derives pagination metadata for the given page and total
// matching row count. TotalPages is the ceiling of total/PageSize.
func NewPagination(page int, total int64) Pagination {
	if page < 1 {
		page = 1
	}

	totalPages := int((total + PageSize - 1) / PageSize)

	return Pagination{
		CurrentPage:     page,
		TotalPages:      totalPages,
		TotalItems:      total,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
		ItemsPerPage:    PageSize,
	}
}
