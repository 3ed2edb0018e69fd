package http

import (
	"errors"
	"net/http"

	"expenseflow/internal/core"
	"expenseflow/internal/log"
	"expenseflow/internal/middleware/trace"
	"expenseflow/internal/sheets"
)

const allowedMethods = "GET, POST, OPTIONS"

type listResponse struct {
	Transactions []core.Transaction `json:"transactions"`
}

type createdResponse struct {
	Success bool `json:"success"`
}

// handleRoot serves the single transaction endpoint.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError().Write(w)
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if !s.svc.Configured() {
		s.logger.ErrorContext(r.Context(), "Request rejected, backend not configured",
			log.FieldRequestID, trace.GetRequestID(r.Context()),
			log.FieldMethod, r.Method)
		NotConfiguredError().Write(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		MethodNotAllowedError(allowedMethods).Write(w)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Body(listResponse{Transactions: txs}).Write(w)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	in, err := ParseTransactionInput(w, r)
	if err != nil {
		var perr *PayloadError
		detail := bodyRequiredDetail
		if errors.As(err, &perr) {
			detail = perr.Detail
		}
		s.logger.WarnContext(r.Context(), "Rejected undecodable payload",
			log.FieldRequestID, trace.GetRequestID(r.Context()),
			log.FieldError, err.Error())
		InvalidPayload([]string{detail}).Write(w)
		return
	}

	if _, err := s.svc.Create(r.Context(), in); err != nil {
		s.writeServiceError(w, r, log.OpAppend, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(createdResponse{Success: true}).Write(w)
}

// writeServiceError maps service errors onto the response contract.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	fields := log.NewFields().WithRequestID(trace.GetRequestID(ctx))

	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		s.logger.WarnContext(ctx, "Rejected invalid transaction",
			append(fields.ToSlice(), log.FieldProblems, verr.Problems)...)
		InvalidPayload(verr.Problems).Write(w)

	case errors.Is(err, core.ErrNotConfigured):
		NotConfiguredError().Write(w)

	default:
		if ue, ok := sheets.AsUpstream(err); ok {
			s.events.LogError(ctx, "Spreadsheet call failed", err, log.ComponentSheets, op,
				fields.WithUpstream(ue.Status))
			UpstreamFailure(ue).Write(w)
			return
		}
		s.events.LogError(ctx, "Unexpected error handling request", err, log.ComponentHTTP, op, fields)
		InternalServerError().Write(w)
	}
}
