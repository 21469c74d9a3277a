package issuance

import (
	"context"
	"errors"

	"github.com/learnreward/rewardplane/internal/app/gate"
	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/observability"
)

// Proof actions signed for the ledger.
const (
	ActionMint = "mint"
	ActionBurn = "burn"
)

// IssueRequest is one reward issuance for a course completion.
type IssueRequest struct {
	IssuerID  string `json:"issuer_id"`
	Recipient string `json:"recipient"`
	CourseID  string `json:"course_id"`
	Amount    uint64 `json:"amount"`
}

// Issue mints amount to the recipient for completing a course. The
// completion record, every counter and the mint commit together; a ledger
// failure leaves no trace.
func (s *Service) Issue(ctx context.Context, caller string, req IssueRequest) (*domain.CompletionRecord, error) {
	var (
		out    *domain.CompletionRecord
		mintID string
		minted bool
	)
	attrs := map[string]string{"issuer": req.IssuerID, "recipient": req.Recipient, "course": req.CourseID}
	err := s.tracer.Track(ctx, "issuance.issue", attrs, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, err := tx.GetProgram(ctx)
			if err != nil {
				return err
			}
			if err := gate.Check(p, domain.PauseMint); err != nil {
				return err
			}
			e, err := tx.GetIssuer(ctx, req.IssuerID)
			if err != nil {
				return err
			}
			if caller != e.Principal {
				return domain.ErrUnauthorized
			}
			if !e.Active {
				return domain.ErrInactiveEducator
			}
			if req.Recipient == "" {
				return domain.ErrInvalidPrincipal
			}
			if req.Amount == 0 || req.Amount > e.MintCap {
				return domain.ErrInvalidAmount
			}
			cfg, err := tx.GetConfig(ctx)
			if err != nil {
				return err
			}
			now := s.now().Unix()
			if !e.CooldownElapsed(now, cfg.MintCooldown) {
				return domain.ErrMintingTooFrequent
			}

			c, err := tx.GetCourse(ctx, req.IssuerID, req.CourseID)
			if err != nil {
				return err
			}
			if !c.Active {
				return domain.ErrCourseInactive
			}
			rec := &domain.CompletionRecord{
				Recipient: req.Recipient,
				CourseID:  req.CourseID,
				IssuerID:  req.IssuerID,
				Amount:    req.Amount,
				IssuedAt:  now,
			}
			if err := tx.InsertCompletion(ctx, rec); err != nil {
				return err
			}

			r, created, err := loadOrNewRecipient(ctx, tx, req.Recipient, now)
			if err != nil {
				return err
			}
			if err := applyCounters(p, e, c, r, req.Amount); err != nil {
				return err
			}
			e.LastIssuanceAt = now
			e.LastUpdatedAt = now
			r.LastActivity = now
			c.LastUpdatedAt = now

			if err := tx.UpdateIssuer(ctx, e); err != nil {
				return err
			}
			if err := tx.UpdateProgram(ctx, p); err != nil {
				return err
			}
			if err := tx.UpdateCourse(ctx, c); err != nil {
				return err
			}
			if created {
				err = tx.InsertRecipient(ctx, r)
			} else {
				err = tx.UpdateRecipient(ctx, r)
			}
			if err != nil {
				return err
			}

			// Ledger call last: anything failing above never reaches it.
			proof, err := s.signer.SignProof(s.identity, ActionMint)
			if err != nil {
				return err
			}
			if err := s.assets.Mint(ctx, p.MintID, req.Recipient, req.Amount, proof); err != nil {
				return err
			}
			mintID, minted = p.MintID, true
			out = rec
			return nil
		})
	})
	if err != nil {
		if minted {
			s.compensate(ctx, mintID, req, err)
		}
		return nil, err
	}

	observability.UnitsMinted.Add(float64(req.Amount))
	s.log.Info().
		Str("issuer", req.IssuerID).
		Str("recipient", req.Recipient).
		Str("course", req.CourseID).
		Uint64("amount", req.Amount).
		Msg("reward issued")
	return out, nil
}

// applyCounters performs every overflow-checked increment before any of
// them is written back.
func applyCounters(p *domain.ProgramState, e *domain.IssuerEntry, c *domain.Course, r *domain.RecipientAccount, amount uint64) error {
	issued, err := domain.CheckedAdd(e.TotalIssued, amount)
	if err != nil {
		return err
	}
	minted, err := domain.CheckedAdd(p.TotalMinted, amount)
	if err != nil {
		return err
	}
	earned, err := domain.CheckedAdd(r.TotalEarned, amount)
	if err != nil {
		return err
	}
	completed, err := domain.CheckedAdd32(r.CoursesCompleted, 1)
	if err != nil {
		return err
	}
	completions, err := domain.CheckedAdd(c.CompletionCount, 1)
	if err != nil {
		return err
	}
	e.TotalIssued = issued
	p.TotalMinted = minted
	r.TotalEarned = earned
	r.CoursesCompleted = completed
	c.CompletionCount = completions
	return nil
}

func loadOrNewRecipient(ctx context.Context, tx domain.Tx, recipient string, now int64) (*domain.RecipientAccount, bool, error) {
	r, err := tx.GetRecipient(ctx, recipient)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, domain.ErrRecipientNotFound) {
		return nil, false, err
	}
	return &domain.RecipientAccount{Recipient: recipient, CreatedAt: now, LastActivity: now}, true, nil
}

// compensate burns a mint whose state commit failed so that ledger supply
// matches total_minted again.
func (s *Service) compensate(ctx context.Context, mintID string, req IssueRequest, cause error) {
	log := s.log.With().
		Str("recipient", req.Recipient).
		Uint64("amount", req.Amount).
		AnErr("cause", cause).
		Logger()

	proof, err := s.signer.SignProof(s.identity, ActionBurn)
	if err == nil {
		err = s.assets.Burn(context.WithoutCancel(ctx), mintID, req.Recipient, req.Amount, proof)
	}
	if err != nil {
		observability.CompensatingBurns.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("compensating burn failed: ledger supply diverges from total_minted")
		return
	}
	observability.CompensatingBurns.WithLabelValues("ok").Inc()
	log.Warn().Msg("state commit failed after mint; compensating burn applied")
}

// ─── Recipients ─────────────────────────────────────────────────────────────

// RegisterRecipient creates an empty recipient account. Recipients register
// themselves; issuance also creates the account on first use.
func (s *Service) RegisterRecipient(ctx context.Context, caller, recipient string) (*domain.RecipientAccount, error) {
	if recipient == "" {
		return nil, domain.ErrInvalidPrincipal
	}
	var out *domain.RecipientAccount
	err := s.tracer.Track(ctx, "issuance.register_recipient", map[string]string{"recipient": recipient}, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, err := tx.GetProgram(ctx)
			if err != nil {
				return err
			}
			if err := gate.CheckRunning(p); err != nil {
				return err
			}
			if caller != recipient {
				return domain.ErrUnauthorized
			}
			now := s.now().Unix()
			r := &domain.RecipientAccount{Recipient: recipient, CreatedAt: now, LastActivity: now}
			if err := tx.InsertRecipient(ctx, r); err != nil {
				return err
			}
			out = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("recipient", recipient).Msg("recipient registered")
	return out, nil
}

// GetRecipient returns a recipient account.
func (s *Service) GetRecipient(ctx context.Context, recipient string) (*domain.RecipientAccount, error) {
	var out *domain.RecipientAccount
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		r, err := tx.GetRecipient(ctx, recipient)
		out = r
		return err
	})
	return out, err
}

// GetCompletion returns the completion record for a recipient and course.
func (s *Service) GetCompletion(ctx context.Context, recipient, courseID string) (*domain.CompletionRecord, error) {
	var out *domain.CompletionRecord
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		c, err := tx.GetCompletion(ctx, recipient, courseID)
		out = c
		return err
	})
	return out, err
}
