package http

import (
	"net/http"
	"strings"
	"sync/atomic"

	"kakeibo/internal/log"
	"kakeibo/internal/ports"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := req.toTransaction(userID, s.cfg.Now())
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	out, err := s.svc.Ledger.RecordTransaction(r.Context(), tx)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.transactionsLogged, 1)
	NewJSONResponse().Status(http.StatusCreated).Body(toTransaction(out)).Write(w)
}

// handleListTransactions lists the user's transactions in the requested
// range, newest first. ?type= and ?category_id= narrow the result.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()
	rng, err := ParseRange(q, s.cfg.Now())
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	typ, err := ParseTypeParam(q)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	filter := ports.TransactionFilter{Type: typ, CategoryID: strings.TrimSpace(q.Get("category_id"))}
	txs, err := s.svc.Ledger.ListTransactions(r.Context(), userID, rng, filter)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	out := make([]transactionJSON, len(txs))
	for i, t := range txs {
		out[i] = toTransaction(t)
	}
	NewJSONResponse().Body(map[string]any{
		"range":        toRange(rng),
		"transactions": out,
	}).Write(w)
}
