package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/court-case-fetcher/internal/db"
	"github.com/jonathan/court-case-fetcher/internal/types"
)

// searchBody is the POST /api/search payload. filing_year is accepted as a
// number or a numeric string.
type searchBody struct {
	CaseType      string          `json:"case_type"`
	CaseNumber    string          `json:"case_number"`
	FilingYear    json.RawMessage `json:"filing_year"`
	OrdersPage    int             `json:"orders_page"`
	OrdersPerPage int             `json:"orders_per_page"`
}

func (b searchBody) filingYear() (int, error) {
	raw := bytes.TrimSpace(b.FilingYear)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	invalid := &types.ValidationError{Field: "filing_year", Message: "filing year must be a number"}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, invalid
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		year, err := strconv.Atoi(s)
		if err != nil {
			return 0, invalid
		}
		return year, nil
	}

	var year int
	if err := json.Unmarshal(raw, &year); err != nil {
		return 0, invalid
	}
	return year, nil
}

// orderView is an order as the API returns it. ID and DownloadURL are set
// only for persisted orders.
type orderView struct {
	ID *uuid.UUID `json:"id,omitempty"`
	types.OrderRecord
	DownloadURL string `json:"download_url,omitempty"`
}

func newOrderView(order types.OrderRecord, id *uuid.UUID) orderView {
	v := orderView{ID: id, OrderRecord: order}
	if id != nil {
		v.DownloadURL = "/orders/" + id.String() + "/pdf"
	}
	return v
}

type searchResponse struct {
	Success          bool              `json:"success"`
	Kind             types.OutcomeKind `json:"kind"`
	Origin           types.Origin      `json:"origin"`
	Advisory         types.Advisory    `json:"advisory,omitempty"`
	Message          string            `json:"message,omitempty"`
	Cached           bool              `json:"cached"`
	QueryID          *uuid.UUID        `json:"query_id,omitempty"`
	CaseDetails      types.CaseRecord  `json:"case_details"`
	Orders           []orderView       `json:"orders"`
	OrdersPagination db.Pagination     `json:"orders_pagination"`
}

// paginateOrders returns one page of orders. Pages past the end are clamped
// to the last page.
func paginateOrders(orders []orderView, page, perPage int) ([]orderView, db.Pagination) {
	p := db.NewPagination(page, perPage, len(orders))
	start := min(max(p.Offset(), 0), len(orders))
	end := min(start+p.PerPage, len(orders))
	out := make([]orderView, 0, end-start)
	out = append(out, orders[start:end]...)
	return out, p
}

// handleSearch validates the request, answers from the cache when possible and
// otherwise runs the search, persisting and logging the outcome.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	ctx := r.Context()

	var body searchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	year, err := body.filingYear()
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	req, err := types.NewSearchRequest(body.CaseType, body.CaseNumber, year)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	perPage := body.OrdersPerPage
	if perPage < 1 {
		perPage = s.ordersPerPage
	}
	perPage = min(perPage, maxPerPage)

	if s.store != nil {
		cached, err := s.store.FindCachedCase(ctx, req)
		if err != nil {
			s.logger.Warn("cache lookup failed", "case", req.Key(), "error", err)
		} else if cached != nil {
			views := make([]orderView, len(cached.Orders))
			for i := range cached.Orders {
				views[i] = newOrderView(cached.Orders[i].OrderRecord, &cached.Orders[i].ID)
			}
			page, pagination := paginateOrders(views, body.OrdersPage, perPage)
			s.logSearch(r, req, start, true, "")
			s.jsonResponse(w, http.StatusOK, searchResponse{
				Success:          true,
				Kind:             types.OutcomeSuccess,
				Origin:           cached.Origin,
				Cached:           true,
				QueryID:          &cached.QueryID,
				CaseDetails:      cached.Case,
				Orders:           page,
				OrdersPagination: pagination,
			})
			return
		}
	}

	outcome, err := s.searcher.Search(ctx, req)
	if err != nil {
		s.logSearch(r, req, start, false, err.Error())
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	var saved *db.SavedOutcome
	if s.store != nil {
		saved, err = s.store.SaveOutcome(ctx, req, outcome)
		if err != nil {
			s.logger.Error("saving search outcome", "case", req.Key(), "error", err)
			saved = nil
		}
	}

	views := make([]orderView, len(outcome.Orders))
	for i, order := range outcome.Orders {
		var id *uuid.UUID
		if saved != nil && i < len(saved.OrderIDs) {
			id = &saved.OrderIDs[i]
		}
		views[i] = newOrderView(order, id)
	}
	page, pagination := paginateOrders(views, body.OrdersPage, perPage)

	resp := searchResponse{
		Success:          true,
		Kind:             outcome.Kind,
		Origin:           outcome.Origin,
		Advisory:         outcome.Advisory,
		Message:          outcome.Advisory.Message(),
		CaseDetails:      outcome.Case,
		Orders:           page,
		OrdersPagination: pagination,
	}
	if saved != nil {
		resp.QueryID = &saved.QueryID
	}

	s.logSearch(r, req, start, !outcome.IsDegraded(), string(outcome.Advisory))
	s.jsonResponse(w, http.StatusOK, resp)
}

// logSearch records a search audit entry. Failures are logged and dropped.
func (s *Server) logSearch(r *http.Request, req types.SearchRequest, start time.Time, success bool, message string) {
	if s.store == nil {
		return
	}
	entry := db.SearchLog{
		IPAddress: s.extractClientID(r),
		UserAgent: r.UserAgent(),
		Params: map[string]any{
			"case_type":   req.CaseType(),
			"case_number": req.CaseNumber(),
			"filing_year": req.FilingYear(),
		},
		ResponseMs:   s.now().Sub(start).Milliseconds(),
		Success:      success,
		ErrorMessage: message,
	}
	if err := s.store.LogSearch(r.Context(), entry); err != nil {
		s.logger.Warn("recording search log", "case", req.Key(), "error", err)
	}
}

// handleListCases lists previously searched cases, newest first.
func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.errorResponse(w, HTTPStatus(ErrNoDatabase), ErrNoDatabase.Error())
		return
	}

	page := parseQueryInt(r, "page", 1, 0)
	perPage := parseQueryInt(r, "per_page", s.casesPerPage, maxPerPage)

	cases, err := s.store.ListCases(r.Context(), page, perPage)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":    true,
		"cases":      cases.Cases,
		"pagination": cases.Pagination,
	})
}

// handleStats returns search statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.errorResponse(w, HTTPStatus(ErrNoDatabase), ErrNoDatabase.Error())
		return
	}

	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

// handleOrderPDF redirects to the stored PDF reference of an order.
func (s *Server) handleOrderPDF(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	if s.store == nil {
		s.errorResponse(w, HTTPStatus(ErrNoDatabase), ErrNoDatabase.Error())
		return
	}

	order, err := s.store.GetOrder(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if order == nil || order.PDFReference == "" {
		notFound := &ErrNotFound{Resource: "order PDF", ID: id.String()}
		if order != nil {
			s.logger.Info("order has no PDF reference", "order_id", id)
		}
		s.errorResponse(w, HTTPStatus(notFound), notFound.Error())
		return
	}

	http.Redirect(w, r, order.PDFReference, http.StatusFound)
}

