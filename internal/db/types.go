package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/court-case-fetcher/internal/types"
)

// Query status values
const (
	QueryStatusSuccess  = "success"
	QueryStatusDegraded = "degraded"
)

// QueryStatus maps an outcome to the status stored for its query.
func QueryStatus(outcome types.SearchOutcome) string {
	if outcome.IsDegraded() {
		return QueryStatusDegraded
	}
	return QueryStatusSuccess
}

// StoredOrder is an order with its database ID.
type StoredOrder struct {
	ID uuid.UUID `json:"id"`
	types.OrderRecord
}

// CachedCase is a previously fetched case.
type CachedCase struct {
	QueryID    uuid.UUID        `json:"query_id"`
	Origin     types.Origin     `json:"origin"`
	SearchedAt time.Time        `json:"searched_at"`
	Case       types.CaseRecord `json:"case"`
	Orders     []StoredOrder    `json:"orders"`
}

// SavedOutcome identifies the rows written for an outcome.
type SavedOutcome struct {
	QueryID  uuid.UUID   `json:"query_id"`
	OrderIDs []uuid.UUID `json:"order_ids"`
}

// CaseSummary is one row of the case listing.
type CaseSummary struct {
	ID         uuid.UUID `json:"id"`
	CaseType   string    `json:"case_type"`
	CaseNumber string    `json:"case_number"`
	FilingYear int       `json:"filing_year"`
	Status     string    `json:"status"`
	SearchedAt time.Time `json:"search_timestamp"`
	Title      *string   `json:"case_title,omitempty"`
	Petitioner *string   `json:"petitioner,omitempty"`
	Respondent *string   `json:"respondent,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

// NewPagination normalizes page and perPage and computes the page count.
// A page past the end is clamped to the last page, so Offset never exceeds
// total.
func NewPagination(page, perPage, total int) Pagination {
	if perPage < 1 {
		perPage = 10
	}
	if total < 0 {
		total = 0
	}
	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	page = min(page, max(pages, 1))
	if page < 1 {
		page = 1
	}
	return Pagination{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
	}
}

// Offset is the number of rows before this page.
func (p Pagination) Offset() int {
	if p.Page < 1 || p.PerPage < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// CasePage is a page of the case listing.
type CasePage struct {
	Cases      []CaseSummary `json:"cases"`
	Pagination Pagination    `json:"pagination"`
}

// SearchLog is one search audit entry.
type SearchLog struct {
	ID           uuid.UUID      `json:"id"`
	LoggedAt     time.Time      `json:"timestamp"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Params       map[string]any `json:"search_params,omitempty"`
	ResponseMs   int64          `json:"response_time_ms"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// CaseTypeCount is one bucket of the case type distribution.
type CaseTypeCount struct {
	CaseType string `json:"case_type"`
	Count    int    `json:"count"`
}

// Stats summarizes search activity.
type Stats struct {
	TotalSearches      int             `json:"total_searches"`
	SuccessfulSearches int             `json:"successful_searches"`
	FailedSearches     int             `json:"failed_searches"`
	SuccessRate        float64         `json:"success_rate"`
	RecentSearches     []SearchLog     `json:"recent_searches"`
	CaseTypes          []CaseTypeCount `json:"case_type_distribution"`
}

// RecentSearchLimit caps Stats.RecentSearches.
const RecentSearchLimit = 10

// SuccessRate returns successful/total as a percentage, 0 when total is 0.
func SuccessRate(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total) * 100
}
