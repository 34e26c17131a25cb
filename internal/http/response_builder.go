// Package http provides the JSON API server and its handlers.
//
// This file holds the response builder and the wire shapes of the API. Core
// types carry no JSON tags, so every response goes through one of the
// converters below.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
)

// JSONResponseBuilder provides a fluent API for writing JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with a default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(key, value string) *JSONResponseBuilder {
	b.headers[key] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write encodes the body and sends the response. A nil body sends no content.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError sends msg with status code.
func WriteError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	NewJSONResponse().
		Status(code).
		Body(errorBody{Error: msg, RequestID: log.RequestID(r.Context())}).
		Write(w)
}

// writeServiceError maps a service error to a status. Unclassified errors
// are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code, msg := classify(err)
	if code == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeInternal)
	}
	WriteError(w, r, code, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrEmptyUser):
		return http.StatusUnauthorized, "missing " + UserIDHeader + " header"
	case errors.Is(err, core.ErrCategoryNotFound):
		return http.StatusNotFound, core.ErrCategoryNotFound.Error()
	case errors.Is(err, core.ErrSubcategoryNotFound):
		return http.StatusNotFound, core.ErrSubcategoryNotFound.Error()
	case errors.Is(err, services.ErrProfileExists):
		return http.StatusConflict, services.ErrProfileExists.Error()
	case errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNameTooLong),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrSubcategoryOrphan),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, core.ErrUnknownPeriod):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

type rangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type profileJSON struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type categoryJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

type subcategoryJSON struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	IsDefault  bool   `json:"is_default"`
}

type transactionJSON struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	Date          string    `json:"date"`
	CategoryID    *string   `json:"category_id"`
	CategoryName  string    `json:"category_name,omitempty"`
	SubcategoryID *string   `json:"subcategory_id,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type totalsJSON struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Balance int64 `json:"balance"`
}

type summaryJSON struct {
	Range  rangeJSON  `json:"range"`
	Totals totalsJSON `json:"totals"`
	Count  int        `json:"count"`
}

type monthJSON struct {
	Month   string `json:"month"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
	Balance int64  `json:"balance"`
}

type shareJSON struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Amount       int64             `json:"amount"`
	Count        int               `json:"count"`
	Percentage   float64           `json:"percentage"`
	Transactions []transactionJSON `json:"transactions"`
}

type deltaJSON struct {
	Change        int64 `json:"change"`
	ChangePercent int64 `json:"change_percent"`
}

type comparisonJSON struct {
	Range         rangeJSON  `json:"range"`
	PreviousRange rangeJSON  `json:"previous_range"`
	Current       totalsJSON `json:"current"`
	Previous      totalsJSON `json:"previous"`
	Income        deltaJSON  `json:"income"`
	Expense       deltaJSON  `json:"expense"`
	Balance       deltaJSON  `json:"balance"`
}

func toRange(r core.DateRange) rangeJSON {
	return rangeJSON{Start: r.Start.String(), End: r.End.String()}
}

func toProfile(p core.Profile) profileJSON {
	return profileJSON{ID: p.ID, CreatedAt: p.CreatedAt}
}

func toCategories(cats []core.Category) []categoryJSON {
	out := make([]categoryJSON, len(cats))
	for i, c := range cats {
		out[i] = toCategory(c)
	}
	return out
}

func toCategory(c core.Category) categoryJSON {
	return categoryJSON{ID: c.ID, Name: c.Name, Type: c.Type.String(), IsDefault: c.IsDefault, CreatedAt: c.CreatedAt}
}

func toSubcategories(subs []core.Subcategory) []subcategoryJSON {
	out := make([]subcategoryJSON, len(subs))
	for i, s := range subs {
		out[i] = subcategoryJSON{ID: s.ID, CategoryID: s.CategoryID, Name: s.Name, IsDefault: s.IsDefault}
	}
	return out
}

func toTransaction(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:            t.ID,
		Type:          t.Type.String(),
		Amount:        t.Amount.Int64(),
		Date:          t.Date.String(),
		CategoryID:    t.CategoryID,
		CategoryName:  t.CategoryName,
		SubcategoryID: t.SubcategoryID,
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
	}
}

func toTotals(t core.PeriodTotals) totalsJSON {
	return totalsJSON{Income: t.Income.Int64(), Expense: t.Expense.Int64(), Balance: t.Balance.Int64()}
}

func toSummary(s services.Summary) summaryJSON {
	return summaryJSON{Range: toRange(s.Range), Totals: toTotals(s.Totals), Count: s.Count}
}

func toMonths(series []core.MonthSummary) []monthJSON {
	out := make([]monthJSON, len(series))
	for i, m := range series {
		out[i] = monthJSON{
			Month:   m.Month.String(),
			Income:  m.Income.Int64(),
			Expense: m.Expense.Int64(),
			Balance: m.Balance.Int64(),
		}
	}
	return out
}

func toShares(shares []core.CategoryShare) []shareJSON {
	out := make([]shareJSON, len(shares))
	for i, s := range shares {
		out[i] = shareJSON{
			Name:       s.Name,
			Type:       s.Type.String(),
			Amount:     s.Amount.Int64(),
			Count:      s.Count,
			Percentage: s.Percentage,
		}
		out[i].Transactions = make([]transactionJSON, len(s.Transactions))
		for j, t := range s.Transactions {
			out[i].Transactions[j] = toTransaction(t)
		}
	}
	return out
}

func toDelta(d core.Delta) deltaJSON {
	return deltaJSON{Change: d.Change.Int64(), ChangePercent: d.ChangePercent}
}

func toComparison(r core.DateRange, c core.Comparison) comparisonJSON {
	return comparisonJSON{
		Range:         toRange(r),
		PreviousRange: toRange(core.ComparisonWindow(r)),
		Current:       toTotals(c.Current),
		Previous:      toTotals(c.Previous),
		Income:        toDelta(c.Income),
		Expense:       toDelta(c.Expense),
		Balance:       toDelta(c.Balance),
	}
}
