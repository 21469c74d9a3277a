package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/learnreward/rewardplane/internal/domain"
)

// ─── Program & Gate ─────────────────────────────────────────────────────────
//
// GET   /api/status       program state, config and registries
// PATCH /api/config       partial config update (authority)
// GET   /api/gate         pause switch and flags
// POST  /api/gate/global  {"paused": bool} (authority)
// POST  /api/gate/flags   {"flags": ["MINT", ...], "enable": bool} (authority)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Program.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req domain.ConfigUpdate
	if !decode(w, r, &req) {
		return
	}
	cfg, err := s.svc.Program.UpdateConfig(r.Context(), principal(r), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// gateView is the wire shape of the capability gate.
type gateView struct {
	Paused    bool     `json:"paused"`
	Mask      uint32   `json:"pause_flags"`
	Effective []string `json:"effective_flags"`
}

func viewGate(p *domain.ProgramState) gateView {
	v := gateView{Paused: p.Paused, Mask: uint32(p.PauseFlags), Effective: []string{}}
	eff := p.EffectiveFlags()
	for _, f := range []domain.PauseFlag{domain.PauseMint, domain.PauseTransfer, domain.PauseBurn, domain.PauseRegister, domain.PauseCourse} {
		if eff&f != 0 {
			v.Effective = append(v.Effective, f.String())
		}
	}
	return v
}

func (s *Server) handleGateState(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Gate.State(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewGate(p))
}

func (s *Server) handleSetGlobal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paused bool `json:"paused"`
	}
	if !decode(w, r, &req) {
		return
	}
	p, err := s.svc.Gate.SetGlobal(r.Context(), principal(r), req.Paused)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewGate(p))
}

func (s *Server) handleSetFlags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flags  []string `json:"flags"`
		Enable bool     `json:"enable"`
	}
	if !decode(w, r, &req) {
		return
	}
	var mask domain.PauseFlag
	for _, name := range req.Flags {
		f, ok := domain.ParsePauseFlag(name)
		if !ok {
			s.fail(w, r, domain.ErrInvalidPauseFlags)
			return
		}
		mask |= f
	}
	p, err := s.svc.Gate.SetFlags(r.Context(), principal(r), mask, req.Enable)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewGate(p))
}

// ─── Registries & Proposals ─────────────────────────────────────────────────
//
// POST /api/registries/{kind}                          {"signers": [...], "threshold": n}
// GET  /api/registries/{kind}
// POST /api/registries/{kind}/proposals                {"effect": {"kind", "params"}, "description"}
// GET  /api/registries/{kind}/proposals?status=ACTIVE
// GET  /api/registries/{kind}/proposals/{index}
// POST /api/registries/{kind}/proposals/{index}/approve
// POST /api/registries/{kind}/proposals/{index}/execute
// POST /api/registries/{kind}/proposals/{index}/cancel

func registryKind(r *http.Request) (domain.RegistryKind, error) {
	kind := domain.RegistryKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		return "", domain.ErrRegistryNotFound
	}
	return kind, nil
}

func proposalRef(r *http.Request) (domain.RegistryKind, uint64, error) {
	kind, err := registryKind(r)
	if err != nil {
		return "", 0, err
	}
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		return "", 0, domain.ErrProposalNotFound
	}
	return kind, index, nil
}

func (s *Server) handleCreateRegistry(w http.ResponseWriter, r *http.Request) {
	kind, err := registryKind(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Signers   []string `json:"signers"`
		Threshold int      `json:"threshold"`
	}
	if !decode(w, r, &req) {
		return
	}
	reg, err := s.svc.Governance.CreateRegistry(r.Context(), kind, req.Signers, req.Threshold, principal(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (s *Server) handleGetRegistry(w http.ResponseWriter, r *http.Request) {
	kind, err := registryKind(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	reg, err := s.svc.Governance.Registry(r.Context(), kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	kind, err := registryKind(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Effect      json.RawMessage `json:"effect"`
		Description string          `json:"description"`
	}
	if !decode(w, r, &req) {
		return
	}
	effect, err := domain.DecodeEffect(req.Effect)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.svc.Governance.CreateProposal(r.Context(), kind, principal(r), effect, req.Description)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	kind, err := registryKind(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var status *domain.ProposalStatus
	if q := r.URL.Query().Get("status"); q != "" {
		st, ok := domain.ParseProposalStatus(q)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown proposal status "+strconv.Quote(q), domain.KindValidation.String())
			return
		}
		status = &st
	}
	list, err := s.svc.Governance.List(r.Context(), kind, status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Proposal{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	kind, index, err := proposalRef(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.svc.Governance.Get(r.Context(), kind, index)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.proposalAction(w, r, s.svc.Governance.Approve)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	s.proposalAction(w, r, s.svc.Governance.Execute)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.proposalAction(w, r, s.svc.Governance.Cancel)
}

type proposalOp func(ctx context.Context, kind domain.RegistryKind, index uint64, caller string) (*domain.Proposal, error)

func (s *Server) proposalAction(w http.ResponseWriter, r *http.Request, op proposalOp) {
	kind, index, err := proposalRef(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := op(r.Context(), kind, index, principal(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ─── Traces ─────────────────────────────────────────────────────────────────

// GET /api/traces?limit=50 returns the most recent operation spans.
func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	if s.tracer == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	writeJSON(w, http.StatusOK, s.tracer.Spans(limit))
}
