package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kakeibo/internal/core"
)

const maxBodyBytes = 64 << 10

var errUnknownField = errors.New("unknown field")

// ParseRange resolves ?period= or ?start=&end= into a date range.
func ParseRange(query url.Values, now time.Time) (core.DateRange, error) {
	return core.ResolveRange(
		strings.TrimSpace(query.Get("period")),
		strings.TrimSpace(query.Get("start")),
		strings.TrimSpace(query.Get("end")),
		now,
	)
}

// ParseTypeParam reads the optional ?type= filter. An empty value means both
// types.
func ParseTypeParam(query url.Values) (core.TransactionType, error) {
	v := strings.TrimSpace(query.Get("type"))
	if v == "" {
		return "", nil
	}
	return core.ParseTransactionType(v)
}

// decodeJSON reads a single JSON object from the body into dst. Unknown
// fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if strings.HasPrefix(err.Error(), "json: unknown field") {
			return fmt.Errorf("%w: %s", errUnknownField, strings.TrimPrefix(err.Error(), "json: unknown field "))
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// amountField accepts an amount either as a JSON number or as a string such
// as "1,200".
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return core.ErrInvalidAmount
	}
	*a = amountField(n.String())
	return nil
}

type createCategoryRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type createTransactionRequest struct {
	Type          string      `json:"type"`
	Amount        amountField `json:"amount"`
	Date          string      `json:"date"`
	CategoryID    *string     `json:"category_id"`
	SubcategoryID *string     `json:"subcategory_id"`
	Description   string      `json:"description"`
}

// toTransaction converts the request for userID. An omitted date means today.
func (req createTransactionRequest) toTransaction(userID string, now time.Time) (core.Transaction, error) {
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.Transaction{}, err
	}
	date := core.DateOf(now)
	if s := strings.TrimSpace(req.Date); s != "" {
		if date, err = core.ParseDate(s); err != nil {
			return core.Transaction{}, err
		}
	}
	return core.Transaction{
		UserID:        userID,
		CategoryID:    optionalID(req.CategoryID),
		SubcategoryID: optionalID(req.SubcategoryID),
		Type:          typ,
		Amount:        amount,
		Date:          date,
		Description:   sanitizeInput(req.Description),
	}, nil
}

func optionalID(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}
