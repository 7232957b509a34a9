package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mediatorflow/dispute"
)

// DisputeService is the part of dispute.Service the handlers use.
type DisputeService interface {
	OpenDispute(ctx context.Context, params dispute.OpenParams) (dispute.Dispute, error)
	SubmitAccusedEvidence(ctx context.Context, disputeID int64, caller, text string) (dispute.Dispute, error)
	Vote(ctx context.Context, disputeID int64, voter string, decision bool) (dispute.Dispute, error)
	GetDisputeStatus(ctx context.Context, disputeID int64) (dispute.Dispute, error)
	GetDispute(ctx context.Context, disputeID int64) (dispute.Dispute, error)
	TotalDisputes(ctx context.Context) (int64, error)
	OnDisputeValidated(ctx context.Context, callbackToken string, result dispute.CallbackResult) error
	OnReleaseConfirmed(ctx context.Context, serviceRef, callbackToken string, result dispute.CallbackResult) error
}

// TokenVerifier identifies the calling account from a bearer token.
type TokenVerifier interface {
	VerifyToken(tokenString string) (string, error)
}

type Server struct {
	disputeService DisputeService
	tokenVerifier  TokenVerifier
}

type ctxKey string

const ctxKeyAccountID ctxKey = "accountID"

// Routes wires the public dispute API and the guarded custodian
// completion path.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/disputes", s.withAuth(s.handleDisputes))
	mux.HandleFunc("/api/disputes/count", s.withAuth(s.handleDisputeCount))
	mux.HandleFunc("/api/disputes/", s.withAuth(s.handleDisputeDetail))
	mux.HandleFunc("/internal/callbacks/validated", s.handleDisputeValidated)
	mux.HandleFunc("/internal/callbacks/released", s.handleServiceReleased)
	return mux
}

// withAuth extracts the account id from the bearer token and stores it in
// the request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		accountID, err := s.tokenVerifier.VerifyToken(token)
		if err != nil {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeyAccountID, accountID)))
	}
}

func accountFrom(ctx context.Context) string {
	accountID, _ := ctx.Value(ctxKeyAccountID).(string)
	return accountID
}

type openDisputeRequest struct {
	Accused    string `json:"accused"`
	ServiceRef string `json:"serviceRef"`
	Evidence   string `json:"evidence"`
}

func (s *Server) handleDisputes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req openDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d, err := s.disputeService.OpenDispute(r.Context(), dispute.OpenParams{
		Applicant:         accountFrom(r.Context()),
		Accused:           req.Accused,
		ServiceRef:        req.ServiceRef,
		ApplicantEvidence: req.Evidence,
	})
	if err != nil {
		writeDisputeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisputeResponse(d))
}

func (s *Server) handleDisputeCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	total, err := s.disputeService.TotalDisputes(r.Context())
	if err != nil {
		writeDisputeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total": total})
}

func (s *Server) handleDisputeDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/disputes/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "dispute id required", http.StatusBadRequest)
		return
	}

	disputeID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || disputeID < 0 {
		http.Error(w, "invalid dispute id", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1:
		s.handleGetDispute(w, r, disputeID)
	case len(parts) == 2 && parts[1] == "status":
		s.handleDisputeStatus(w, r, disputeID)
	case len(parts) == 2 && parts[1] == "evidence":
		s.handleSubmitEvidence(w, r, disputeID)
	case len(parts) == 2 && parts[1] == "votes":
		s.handleVote(w, r, disputeID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request, disputeID int64) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	d, err := s.disputeService.GetDispute(r.Context(), disputeID)
	if err != nil {
		writeDisputeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(d))
}

func (s *Server) handleDisputeStatus(w http.ResponseWriter, r *http.Request, disputeID int64) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	d, err := s.disputeService.GetDisputeStatus(r.Context(), disputeID)
	if err != nil {
		writeDisputeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(d.Status)})
}

func (s *Server) handleSubmitEvidence(w http.ResponseWriter, r *http.Request, disputeID int64) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d, err := s.disputeService.SubmitAccusedEvidence(r.Context(), disputeID, accountFrom(r.Context()), req.Text)
	if err != nil {
		writeDisputeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(d))
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request, disputeID int64) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Decision *bool `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Decision == nil {
		http.Error(w, "decision required", http.StatusBadRequest)
		return
	}

	d, err := s.disputeService.Vote(r.Context(), disputeID, accountFrom(r.Context()), *req.Decision)
	if err != nil {
		writeDisputeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(d))
}

type callbackRequest struct {
	ServiceRef    string `json:"serviceRef"`
	CallbackToken string `json:"callbackToken"`
	ResultPresent bool   `json:"resultPresent"`
	Succeeded     bool   `json:"succeeded"`
}

func (s *Server) handleDisputeValidated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := s.disputeService.OnDisputeValidated(r.Context(), req.CallbackToken, dispute.CallbackResult{
		Present:   req.ResultPresent,
		Succeeded: req.Succeeded,
	})
	if err != nil {
		writeDisputeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleServiceReleased(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := s.disputeService.OnReleaseConfirmed(r.Context(), req.ServiceRef, req.CallbackToken, dispute.CallbackResult{
		Present:   req.ResultPresent,
		Succeeded: req.Succeeded,
	})
	if err != nil {
		writeDisputeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type voteResponse struct {
	Voter    string `json:"voter"`
	Decision bool   `json:"decision"`
	CastAt   string `json:"castAt"`
}

type disputeResponse struct {
	ID                 int64          `json:"id"`
	ServiceRef         string         `json:"serviceRef"`
	Status             string         `json:"status"`
	Applicant          string         `json:"applicant"`
	Accused            string         `json:"accused"`
	Winner             *string        `json:"winner,omitempty"`
	ApplicantEvidence  string         `json:"applicantEvidence"`
	AccusedEvidence    *string        `json:"accusedEvidence,omitempty"`
	Votes              []voteResponse `json:"votes"`
	CreatedAt          string         `json:"createdAt"`
	FinishedAt         *string        `json:"finishedAt,omitempty"`
	ReleaseConfirmedAt *string        `json:"releaseConfirmedAt,omitempty"`
}

func toDisputeResponse(d dispute.Dispute) disputeResponse {
	votes := make([]voteResponse, 0, len(d.Votes))
	for _, v := range d.Votes {
		votes = append(votes, voteResponse{
			Voter:    v.VoterID,
			Decision: v.Decision,
			CastAt:   v.CastAt.Format(time.RFC3339),
		})
	}
	return disputeResponse{
		ID:                 d.ID,
		ServiceRef:         d.ServiceRef,
		Status:             string(d.Status),
		Applicant:          d.Applicant,
		Accused:            d.Accused,
		Winner:             d.Winner,
		ApplicantEvidence:  d.ApplicantEvidence,
		AccusedEvidence:    d.AccusedEvidence,
		Votes:              votes,
		CreatedAt:          d.CreatedAt.Format(time.RFC3339),
		FinishedAt:         formatTimePtr(d.FinishedAt),
		ReleaseConfirmedAt: formatTimePtr(d.ReleaseConfirmedAt),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeDisputeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispute.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, dispute.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, dispute.ErrInvalidPhase),
		errors.Is(err, dispute.ErrDuplicateVote),
		errors.Is(err, dispute.ErrDuplicateSubmission),
		errors.Is(err, dispute.ErrQuotaExceeded):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, dispute.ErrValidation),
		errors.Is(err, dispute.ErrCallbackResultMissing):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, dispute.ErrCallbackFailed):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		log.Printf("api: internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
