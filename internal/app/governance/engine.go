package governance

import (
	"context"
	"fmt"

	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/observability"
)

// ─── Proposal Lifecycle ─────────────────────────────────────────────────────

// CreateProposal opens a proposal in the registry of the given kind. The
// proposer must be a member and counts as its first approval.
func (e *Engine) CreateProposal(ctx context.Context, kind domain.RegistryKind, proposer string, effect domain.Effect, description string) (*domain.Proposal, error) {
	if len(description) > domain.MaxDescriptionLength {
		return nil, domain.ErrDescriptionTooLong
	}
	if effect == nil {
		return nil, domain.ErrInvalidEffect
	}
	if err := effect.Validate(); err != nil {
		return nil, err
	}

	var out *domain.Proposal
	attrs := map[string]string{"kind": string(kind), "proposer": proposer, "effect": string(effect.Kind())}
	err := e.tracer.Track(ctx, "governance.create_proposal", attrs, func() error {
		return e.store.RunInTx(ctx, func(tx domain.Tx) error {
			r, err := tx.GetRegistry(ctx, kind)
			if err != nil {
				return err
			}
			if !r.IsSigner(proposer) {
				return domain.ErrUnauthorized
			}
			if !domain.AllowedIn(effect, kind) {
				return domain.ErrEffectNotAllowed
			}
			next, err := domain.CheckedAdd(r.ProposalCount, 1)
			if err != nil {
				return err
			}

			approvals := make(map[string]bool, len(r.Signers))
			for _, s := range r.Signers {
				approvals[s] = s == proposer
			}
			p := &domain.Proposal{
				Registry:    kind,
				Index:       r.ProposalCount,
				Effect:      effect,
				Approvals:   approvals,
				Status:      domain.PropActive,
				Proposer:    proposer,
				Description: description,
				CreatedAt:   e.now().Unix(),
			}
			if err := tx.InsertProposal(ctx, p); err != nil {
				return err
			}
			r.ProposalCount = next
			if err := tx.UpdateRegistry(ctx, r); err != nil {
				return err
			}
			out = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	observability.ProposalTransitions.WithLabelValues(string(kind), out.Status.String()).Inc()
	e.log.Info().
		Str("kind", string(kind)).
		Uint64("index", out.Index).
		Str("proposer", proposer).
		Str("effect", string(effect.Kind())).
		Msg("proposal created")
	return out, nil
}

// Approve records signer's approval. Approving twice fails with
// ErrAlreadyApproved.
func (e *Engine) Approve(ctx context.Context, kind domain.RegistryKind, index uint64, signer string) (*domain.Proposal, error) {
	var (
		out     *domain.Proposal
		expired bool
	)
	attrs := map[string]string{"kind": string(kind), "index": fmt.Sprint(index), "signer": signer}
	err := e.tracer.Track(ctx, "governance.approve", attrs, func() error {
		err := e.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, r, err := e.loadActive(ctx, tx, kind, index)
			if err != nil {
				return err
			}
			if expired, err = e.expireIfStale(ctx, tx, p); err != nil || expired {
				return err
			}
			if !r.IsSigner(signer) {
				return domain.ErrUnauthorized
			}
			if p.Approvals[signer] {
				return domain.ErrAlreadyApproved
			}
			p.Approvals[signer] = true
			if err := tx.UpdateProposal(ctx, p); err != nil {
				return err
			}
			out = p
			return nil
		})
		return settle(err, &expired)
	})
	if expired {
		e.recordExpired(kind, index)
	}
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("kind", string(kind)).Uint64("index", index).Str("signer", signer).Msg("proposal approved")
	return out, nil
}

// Execute applies the proposal's effect once enough current members have
// approved it. Any caller may execute a proposal that reached quorum; the
// caller is recorded as its executor. The effect and the Executed
// transition commit together.
func (e *Engine) Execute(ctx context.Context, kind domain.RegistryKind, index uint64, executor string) (*domain.Proposal, error) {
	var (
		out     *domain.Proposal
		expired bool
		program *domain.ProgramState
	)
	attrs := map[string]string{"kind": string(kind), "index": fmt.Sprint(index), "executor": executor}
	err := e.tracer.Track(ctx, "governance.execute", attrs, func() error {
		err := e.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, r, err := e.loadActive(ctx, tx, kind, index)
			if err != nil {
				return err
			}
			if expired, err = e.expireIfStale(ctx, tx, p); err != nil || expired {
				return err
			}
			if p.ApprovalCount(r) < r.Threshold {
				return domain.ErrNotEnoughSigners
			}
			if err := p.Effect.Validate(); err != nil {
				return err
			}
			if !domain.AllowedIn(p.Effect, kind) {
				return domain.ErrEffectNotAllowed
			}

			now := e.now().Unix()
			if program, err = e.apply(ctx, tx, r, p.Effect, now); err != nil {
				return err
			}
			p.Status = domain.PropExecuted
			p.Executor = executor
			p.ClosedAt = &now
			if err := tx.UpdateProposal(ctx, p); err != nil {
				return err
			}
			out = p
			return nil
		})
		return settle(err, &expired)
	})
	if expired {
		e.recordExpired(kind, index)
	}
	if err != nil {
		return nil, err
	}
	observability.RecordGate(program)
	observability.ProposalTransitions.WithLabelValues(string(kind), out.Status.String()).Inc()
	e.log.Info().
		Str("kind", string(kind)).
		Uint64("index", index).
		Str("executor", executor).
		Str("effect", string(out.Effect.Kind())).
		Msg("proposal executed")
	return out, nil
}

// Cancel withdraws an active proposal. Only its proposer may cancel it.
func (e *Engine) Cancel(ctx context.Context, kind domain.RegistryKind, index uint64, caller string) (*domain.Proposal, error) {
	var (
		out     *domain.Proposal
		expired bool
	)
	attrs := map[string]string{"kind": string(kind), "index": fmt.Sprint(index), "caller": caller}
	err := e.tracer.Track(ctx, "governance.cancel", attrs, func() error {
		err := e.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, _, err := e.loadActive(ctx, tx, kind, index)
			if err != nil {
				return err
			}
			if caller != p.Proposer {
				return domain.ErrUnauthorized
			}
			if expired, err = e.expireIfStale(ctx, tx, p); err != nil || expired {
				return err
			}
			now := e.now().Unix()
			p.Status = domain.PropCancelled
			p.ClosedAt = &now
			if err := tx.UpdateProposal(ctx, p); err != nil {
				return err
			}
			out = p
			return nil
		})
		return settle(err, &expired)
	})
	if expired {
		e.recordExpired(kind, index)
	}
	if err != nil {
		return nil, err
	}
	observability.ProposalTransitions.WithLabelValues(string(kind), out.Status.String()).Inc()
	e.log.Info().Str("kind", string(kind)).Uint64("index", index).Msg("proposal cancelled")
	return out, nil
}

// ─── Read Models ────────────────────────────────────────────────────────────

// Get returns one proposal.
func (e *Engine) Get(ctx context.Context, kind domain.RegistryKind, index uint64) (*domain.Proposal, error) {
	var out *domain.Proposal
	err := e.store.RunInTx(ctx, func(tx domain.Tx) error {
		p, err := tx.GetProposal(ctx, kind, index)
		out = p
		return err
	})
	return out, err
}

// List returns a registry's proposals in index order, optionally filtered by
// status.
func (e *Engine) List(ctx context.Context, kind domain.RegistryKind, status *domain.ProposalStatus) ([]domain.Proposal, error) {
	var out []domain.Proposal
	err := e.store.RunInTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.GetRegistry(ctx, kind); err != nil {
			return err
		}
		list, err := tx.ListProposals(ctx, kind, status)
		out = list
		return err
	})
	return out, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// loadActive loads a proposal and its registry and rejects closed proposals.
func (e *Engine) loadActive(ctx context.Context, tx domain.Tx, kind domain.RegistryKind, index uint64) (*domain.Proposal, *domain.TrusteeRegistry, error) {
	r, err := tx.GetRegistry(ctx, kind)
	if err != nil {
		return nil, nil, err
	}
	p, err := tx.GetProposal(ctx, kind, index)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != domain.PropActive {
		return nil, nil, domain.ErrInvalidProposalStatus
	}
	return p, r, nil
}

// expireIfStale moves a proposal past its window to Expired. The caller
// commits the transition and then reports ErrProposalExpired.
func (e *Engine) expireIfStale(ctx context.Context, tx domain.Tx, p *domain.Proposal) (bool, error) {
	cfg, err := tx.GetConfig(ctx)
	if err != nil {
		return false, err
	}
	now := e.now().Unix()
	if !p.Expired(now, cfg.ProposalExpiration) {
		return false, nil
	}
	p.Status = domain.PropExpired
	p.ClosedAt = &now
	if err := tx.UpdateProposal(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}

// settle turns a committed lazy expiration into ErrProposalExpired. A failed
// commit leaves the proposal untouched.
func settle(err error, expired *bool) error {
	if err != nil {
		*expired = false
		return err
	}
	if *expired {
		return domain.ErrProposalExpired
	}
	return nil
}

func (e *Engine) recordExpired(kind domain.RegistryKind, index uint64) {
	observability.ProposalTransitions.WithLabelValues(string(kind), domain.PropExpired.String()).Inc()
	e.log.Info().Str("kind", string(kind)).Uint64("index", index).Msg("proposal expired")
}
