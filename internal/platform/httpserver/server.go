package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	policyservice "meridian/contexts/insurance-core/policy-service"
	domainerrors "meridian/contexts/insurance-core/policy-service/domain/errors"
	policyhttp "meridian/contexts/insurance-core/policy-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "meridian/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	policy policyservice.Module
}

func New(policy policyservice.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		policy: policy,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/policies", s.handleCreatePolicy)
	s.mux.HandleFunc("GET /v1/policies/{policy_id}", s.handleGetPolicy)
	s.mux.HandleFunc("GET /v1/policies", s.handleListPolicies)
	s.mux.HandleFunc("POST /v1/policies/{policy_id}/cancel", s.handleCancelPolicy)
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req policyhttp.CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePolicyError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.policy.Handler.CreatePolicyHandler(r.Context(), req)
	if err != nil {
		writePolicyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID := r.PathValue("policy_id")
	resp, err := s.policy.Handler.GetPolicyHandler(r.Context(), policyID)
	if err != nil {
		writePolicyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		writePolicyError(w, http.StatusBadRequest, "missing_customer_id", "customer_id query parameter is required")
		return
	}

	resp, err := s.policy.Handler.ListPoliciesHandler(r.Context(), customerID)
	if err != nil {
		writePolicyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelPolicy(w http.ResponseWriter, r *http.Request) {
	policyID := r.PathValue("policy_id")
	resp, err := s.policy.Handler.CancelPolicyHandler(r.Context(), policyID)
	if err != nil {
		writePolicyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePolicyDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrPolicyNotFound):
		writePolicyError(w, http.StatusNotFound, "policy_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrCancelConflict):
		writePolicyError(w, http.StatusConflict, "policy_cancel_conflict", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidTransition):
		writePolicyError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domainerrors.ErrConflict):
		writePolicyError(w, http.StatusConflict, "policy_conflict", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidPolicyInput):
		writePolicyError(w, http.StatusUnprocessableEntity, "invalid_policy_input", err.Error())
	default:
		writePolicyError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePolicyError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, policyhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
