package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learnreward/rewardplane/internal/app/issuance"
	"github.com/learnreward/rewardplane/internal/domain"
)

// ─── Issuers & Courses ──────────────────────────────────────────────────────
//
// POST  /api/issuers                           {"issuer_id", "principal", "mint_cap"} (authority)
// GET   /api/issuers
// GET   /api/issuers/{id}
// PATCH /api/issuers/{id}                      {"active", "mint_cap"?} (authority)
// POST  /api/issuers/{id}/courses              course input (issuer principal)
// GET   /api/issuers/{id}/courses
// GET   /api/issuers/{id}/courses/{course}
// PATCH /api/issuers/{id}/courses/{course}     partial course update (issuer principal)
// GET   /api/issuers/{id}/courses/{course}/history
// POST  /api/issuers/{id}/issue                {"recipient", "course_id", "amount"} (issuer principal)

func (s *Server) handleRegisterIssuer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IssuerID  string `json:"issuer_id"`
		Principal string `json:"principal"`
		MintCap   uint64 `json:"mint_cap"`
	}
	if !decode(w, r, &req) {
		return
	}
	e, err := s.svc.Issuance.RegisterIssuer(r.Context(), principal(r), req.IssuerID, req.Principal, req.MintCap)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleListIssuers(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Issuance.ListIssuers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.IssuerEntry{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetIssuer(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Issuance.GetIssuer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleSetIssuerStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active  bool    `json:"active"`
		MintCap *uint64 `json:"mint_cap"`
	}
	if !decode(w, r, &req) {
		return
	}
	e, err := s.svc.Issuance.SetStatus(r.Context(), principal(r), chi.URLParam(r, "id"), req.Active, req.MintCap)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req issuance.CourseInput
	if !decode(w, r, &req) {
		return
	}
	c, err := s.svc.Issuance.CreateCourse(r.Context(), principal(r), chi.URLParam(r, "id"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Issuance.ListCourses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Course{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Issuance.GetCourse(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "course"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req domain.CourseUpdate
	if !decode(w, r, &req) {
		return
	}
	c, err := s.svc.Issuance.UpdateCourse(r.Context(), principal(r), chi.URLParam(r, "id"), chi.URLParam(r, "course"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCourseHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Issuance.CourseHistory(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "course"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.CourseHistory{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipient string `json:"recipient"`
		CourseID  string `json:"course_id"`
		Amount    uint64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	rec, err := s.svc.Issuance.Issue(r.Context(), principal(r), issuance.IssueRequest{
		IssuerID:  chi.URLParam(r, "id"),
		Recipient: req.Recipient,
		CourseID:  req.CourseID,
		Amount:    req.Amount,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ─── Recipients ─────────────────────────────────────────────────────────────
//
// POST /api/recipients                                   registers the caller
// GET  /api/recipients/{recipient}
// GET  /api/recipients/{recipient}/completions/{course}

func (s *Server) handleRegisterRecipient(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	acct, err := s.svc.Issuance.RegisterRecipient(r.Context(), caller, caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) handleGetRecipient(w http.ResponseWriter, r *http.Request) {
	acct, err := s.svc.Issuance.GetRecipient(r.Context(), chi.URLParam(r, "recipient"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleGetCompletion(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Issuance.GetCompletion(r.Context(), chi.URLParam(r, "recipient"), chi.URLParam(r, "course"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ─── Treasury ───────────────────────────────────────────────────────────────
//
// POST /api/transfers            {"from", "to", "amount"} (holder of from)
// POST /api/burns                {"amount"} burns the caller's units
// GET  /api/balances/{account}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount uint64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.Treasury.Transfer(r.Context(), principal(r), req.From, req.To, req.Amount); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":   req.From,
		"to":     req.To,
		"amount": req.Amount,
	})
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	owner := principal(r)
	if err := s.svc.Treasury.Burn(r.Context(), owner, req.Amount); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":  owner,
		"amount": req.Amount,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	bal, err := s.svc.Treasury.Balance(r.Context(), account)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"balance": bal,
	})
}
