package neotest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type txStatement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters"`
}

type txRequest struct {
	Statements []txStatement `json:"statements"`
}

// handleTransaction serves the transactional Cypher endpoint. Statements
// apply to the shared store immediately; rollback only discards the
// transaction handle. Protocol errors travel in the body's errors array with
// a 200 status, the way the transactional endpoint reports them.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request, parts []string) {
	if s.legacy {
		s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "transactions not supported")
		return
	}

	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		txID := uuid.NewString()
		s.txMu.Lock()
		s.openTxs[txID] = struct{}{}
		s.txMu.Unlock()
		w.Header().Set("Location", s.pay.base+"transaction/"+txID)
		s.runStatements(w, r, txID)

	case len(parts) == 1 && parts[0] == "commit" && r.Method == http.MethodPost:
		s.runStatements(w, r, "")

	case len(parts) == 1 && r.Method == http.MethodPost:
		if !s.txOpen(parts[0]) {
			s.writeTxError(w, "Neo.ClientError.Transaction.UnknownId",
				"Unrecognized transaction id. Transaction may have timed out and been rolled back.")
			return
		}
		s.runStatements(w, r, parts[0])

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if !s.closeTx(parts[0]) {
			s.writeTxError(w, "Neo.ClientError.Transaction.UnknownId",
				"Unrecognized transaction id. Transaction may have timed out and been rolled back.")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"results": []any{}, "errors": []any{}})

	case len(parts) == 2 && parts[1] == "commit" && r.Method == http.MethodPost:
		if !s.closeTx(parts[0]) {
			s.writeTxError(w, "Neo.ClientError.Transaction.UnknownId",
				"Unrecognized transaction id. Transaction may have timed out and been rolled back.")
			return
		}
		s.runStatements(w, r, "")

	default:
		s.writeLegacyError(w, http.StatusMethodNotAllowed, "MethodNotAllowedException", "unsupported transaction operation")
	}
}

func (s *Server) txOpen(id string) bool {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	_, ok := s.openTxs[id]
	return ok
}

func (s *Server) closeTx(id string) bool {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if _, ok := s.openTxs[id]; !ok {
		return false
	}
	delete(s.openTxs, id)
	return true
}

func (s *Server) writeTxError(w http.ResponseWriter, code, message string) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"results": []any{},
		"errors":  []any{map[string]any{"code": code, "message": message}},
	})
}

// runStatements executes a statement batch and answers in the transactional
// result format. An open transaction id adds the commit URI to the body; a
// statement failure closes the transaction.
func (s *Server) runStatements(w http.ResponseWriter, r *http.Request, txID string) {
	var req txRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeTxError(w, "Neo.ClientError.Request.InvalidFormat", "statement list required")
		return
	}

	body := map[string]any{"errors": []any{}}
	if txID != "" {
		body["commit"] = s.pay.base + "transaction/" + txID + "/commit"
		body["transaction"] = map[string]any{"expires": "Tue, 26 Aug 2036 00:00:00 +0000"}
	}

	results := make([]any, 0, len(req.Statements))
	for _, stmt := range req.Statements {
		columns, rows, qerr := s.runCypher(stmt.Statement, stmt.Parameters)
		if qerr != nil {
			if txID != "" {
				s.closeTx(txID)
			}
			body["results"] = results
			body["errors"] = []any{map[string]any{"code": qerr.Code, "message": qerr.Message}}
			s.writeJSON(w, http.StatusOK, body)
			return
		}
		if columns == nil {
			columns = []string{}
		}
		data := make([]any, len(rows))
		for i, row := range rows {
			data[i] = map[string]any{"rest": row}
		}
		results = append(results, map[string]any{"columns": columns, "data": data})
	}
	body["results"] = results
	s.writeJSON(w, http.StatusOK, body)
}
