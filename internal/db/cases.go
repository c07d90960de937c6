package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/court-case-fetcher/internal/types"
)

// -----------------------------------------------------------------------------
// Case query methods
// -----------------------------------------------------------------------------

// FindCachedCase returns the most recent successful fetch of req, or nil when
// the case has not been fetched successfully before. Degraded outcomes are
// never served from the cache.
func (db *DB) FindCachedCase(ctx context.Context, req types.SearchRequest) (*CachedCase, error) {
	var cached CachedCase
	var detailID uuid.UUID
	var origin *string
	var title, petitioner, respondent, status *string
	var filingDate, nextHearing *time.Time

	err := db.pool.QueryRow(ctx,
		`SELECT q.id, q.origin, q.searched_at, d.id, d.case_title, d.petitioner, d.respondent,
		        d.filing_date, d.next_hearing_date, d.case_status
		 FROM case_queries q
		 JOIN case_details d ON d.query_id = q.id
		 WHERE q.case_type = $1 AND q.case_number = $2 AND q.filing_year = $3 AND q.status = $4
		 ORDER BY q.searched_at DESC
		 LIMIT 1`,
		req.CaseType(), req.CaseNumber(), req.FilingYear(), QueryStatusSuccess,
	).Scan(&cached.QueryID, &origin, &cached.SearchedAt, &detailID, &title, &petitioner, &respondent,
		&filingDate, &nextHearing, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find cached case: %w", err)
	}

	cached.Origin = types.Origin(deref(origin))
	cached.Case = types.CaseRecord{
		Title:           deref(title),
		Petitioner:      deref(petitioner),
		Respondent:      deref(respondent),
		FilingDate:      dateOf(filingDate),
		NextHearingDate: dateOf(nextHearing),
		Status:          deref(status),
	}

	cached.Orders, err = db.listOrders(ctx, detailID)
	if err != nil {
		return nil, err
	}
	return &cached, nil
}

// SaveOutcome records a search and its records in one transaction.
func (db *DB) SaveOutcome(ctx context.Context, req types.SearchRequest, outcome types.SearchOutcome) (*SavedOutcome, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	saved := &SavedOutcome{}
	var errorMessage *string
	if msg := outcome.Advisory.Message(); msg != "" {
		errorMessage = &msg
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO case_queries (case_type, case_number, filing_year, status, origin, advisory, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		req.CaseType(), req.CaseNumber(), req.FilingYear(), QueryStatus(outcome),
		string(outcome.Origin), nullIfEmpty(string(outcome.Advisory)), errorMessage,
	).Scan(&saved.QueryID)
	if err != nil {
		return nil, fmt.Errorf("failed to save case query: %w", err)
	}

	var detailID uuid.UUID
	c := outcome.Case
	err = tx.QueryRow(ctx,
		`INSERT INTO case_details (query_id, case_title, petitioner, respondent, filing_date, next_hearing_date, case_status, raw_response)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		saved.QueryID, c.Title, c.Petitioner, c.Respondent, timeOf(c.FilingDate), timeOf(c.NextHearingDate), c.Status,
		nullIfEmpty(outcome.RawMarkup),
	).Scan(&detailID)
	if err != nil {
		return nil, fmt.Errorf("failed to save case details: %w", err)
	}

	for i, o := range outcome.Orders {
		var id uuid.UUID
		err = tx.QueryRow(ctx,
			`INSERT INTO court_orders (case_detail_id, position, order_date, order_type, order_title, order_description, pdf_url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			detailID, i, o.OrderDate, o.OrderType, o.Title, o.Description, nullIfEmpty(o.PDFReference),
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to save order %d: %w", i+1, err)
		}
		saved.OrderIDs = append(saved.OrderIDs, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit outcome: %w", err)
	}
	return saved, nil
}

// ListCases returns one page of searched cases, newest first.
func (db *DB) ListCases(ctx context.Context, page, perPage int) (*CasePage, error) {
	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM case_queries`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count cases: %w", err)
	}
	p := NewPagination(page, perPage, total)

	rows, err := db.pool.Query(ctx,
		`SELECT q.id, q.case_type, q.case_number, q.filing_year, q.status, q.searched_at,
		        d.case_title, d.petitioner, d.respondent
		 FROM case_queries q
		 LEFT JOIN case_details d ON d.query_id = q.id
		 ORDER BY q.searched_at DESC
		 LIMIT $1 OFFSET $2`,
		p.PerPage, p.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	result := &CasePage{Cases: []CaseSummary{}, Pagination: p}
	for rows.Next() {
		var s CaseSummary
		if err := rows.Scan(&s.ID, &s.CaseType, &s.CaseNumber, &s.FilingYear, &s.Status, &s.SearchedAt,
			&s.Title, &s.Petitioner, &s.Respondent); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		result.Cases = append(result.Cases, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return result, nil
}

// GetOrder retrieves an order by ID, or nil when it does not exist.
func (db *DB) GetOrder(ctx context.Context, id uuid.UUID) (*StoredOrder, error) {
	var o StoredOrder
	var orderType, title, description, pdf *string
	err := db.pool.QueryRow(ctx,
		`SELECT id, order_date, order_type, order_title, order_description, pdf_url
		 FROM court_orders WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.OrderDate, &orderType, &title, &description, &pdf)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o.OrderType, o.Title, o.Description, o.PDFReference = deref(orderType), deref(title), deref(description), deref(pdf)
	return &o, nil
}

func (db *DB) listOrders(ctx context.Context, detailID uuid.UUID) ([]StoredOrder, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, order_date, order_type, order_title, order_description, pdf_url
		 FROM court_orders WHERE case_detail_id = $1 ORDER BY position`,
		detailID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []StoredOrder{}
	for rows.Next() {
		var o StoredOrder
		var orderType, title, description, pdf *string
		if err := rows.Scan(&o.ID, &o.OrderDate, &orderType, &title, &description, &pdf); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.OrderType, o.Title, o.Description, o.PDFReference = deref(orderType), deref(title), deref(description), deref(pdf)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func timeOf(d *types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time()
	return &t
}

func dateOf(t *time.Time) *types.Date {
	if t == nil {
		return nil
	}
	return types.DateOf(*t)
}
