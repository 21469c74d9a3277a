// Package issuance implements the issuer directory, the course catalog and
// the issuance controller that mints rewards for course completions.
package issuance

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/learnreward/rewardplane/internal/app/gate"
	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/observability"
)

// Service is the issuer directory, course catalog and issuance controller.
type Service struct {
	store    domain.Store
	assets   domain.AssetService
	signer   domain.ProofSigner
	identity string // control plane principal used for mint proofs
	tracer   *observability.Tracer
	log      zerolog.Logger
	now      func() time.Time
}

// New creates an issuance service. identity is the principal the ledger
// accepts mint proofs from.
func New(store domain.Store, assets domain.AssetService, signer domain.ProofSigner, identity string,
	tracer *observability.Tracer, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		assets:   assets,
		signer:   signer,
		identity: identity,
		tracer:   tracer,
		log:      log.With().Str("component", "issuance").Logger(),
		now:      time.Now,
	}
}

// ─── Directory Operations ───────────────────────────────────────────────────

// RegisterIssuer adds an issuer. The program authority is the only caller
// allowed.
func (s *Service) RegisterIssuer(ctx context.Context, caller, issuerID, principal string, mintCap uint64) (*domain.IssuerEntry, error) {
	var out *domain.IssuerEntry
	err := s.tracer.Track(ctx, "issuance.register_issuer", map[string]string{"caller": caller, "issuer": issuerID}, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, err := tx.GetProgram(ctx)
			if err != nil {
				return err
			}
			if err := gate.Check(p, domain.PauseRegister); err != nil {
				return err
			}
			if caller != p.Authority {
				return domain.ErrUnauthorized
			}
			cfg, err := tx.GetConfig(ctx)
			if err != nil {
				return err
			}
			out, err = RegisterIssuerTx(ctx, tx, p, cfg, caller, issuerID, principal, mintCap, s.now().Unix())
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("issuer", issuerID).Str("principal", principal).Uint64("cap", mintCap).Msg("issuer registered")
	return out, nil
}

// SetStatus activates or deactivates an issuer and optionally replaces its
// cap. Only the program authority may call it.
func (s *Service) SetStatus(ctx context.Context, caller, issuerID string, active bool, newCap *uint64) (*domain.IssuerEntry, error) {
	var out *domain.IssuerEntry
	err := s.tracer.Track(ctx, "issuance.set_status", map[string]string{"caller": caller, "issuer": issuerID}, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, err := tx.GetProgram(ctx)
			if err != nil {
				return err
			}
			if err := gate.Check(p, domain.PauseRegister); err != nil {
				return err
			}
			if caller != p.Authority {
				return domain.ErrUnauthorized
			}
			cfg, err := tx.GetConfig(ctx)
			if err != nil {
				return err
			}
			out, err = SetIssuerStatusTx(ctx, tx, cfg, issuerID, active, newCap, s.now().Unix())
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("issuer", issuerID).Bool("active", active).Msg("issuer status updated")
	return out, nil
}

// GetIssuer returns an issuer entry.
func (s *Service) GetIssuer(ctx context.Context, issuerID string) (*domain.IssuerEntry, error) {
	var out *domain.IssuerEntry
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		e, err := tx.GetIssuer(ctx, issuerID)
		out = e
		return err
	})
	return out, err
}

// ListIssuers returns every issuer.
func (s *Service) ListIssuers(ctx context.Context) ([]domain.IssuerEntry, error) {
	var out []domain.IssuerEntry
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		list, err := tx.ListIssuers(ctx)
		out = list
		return err
	})
	return out, err
}

// ─── Transaction-Scoped Helpers ─────────────────────────────────────────────
// Shared by the direct operations above and by governance effects. Callers
// have already checked the gate and authorization.

// RegisterIssuerTx validates and inserts an issuer, bumping the program's
// issuer count.
func RegisterIssuerTx(ctx context.Context, tx domain.Tx, p *domain.ProgramState, cfg *domain.ProgramConfig,
	authority, issuerID, principal string, mintCap uint64, now int64) (*domain.IssuerEntry, error) {
	if issuerID == "" || principal == "" {
		return nil, domain.ErrInvalidPrincipal
	}
	if mintCap == 0 || mintCap > cfg.MaxMintAmount {
		return nil, domain.ErrInvalidAmount
	}
	if p.IssuerCount >= cfg.MaxIssuers {
		return nil, domain.ErrMaxIssuersReached
	}
	count, err := domain.CheckedAdd32(p.IssuerCount, 1)
	if err != nil {
		return nil, err
	}

	e := &domain.IssuerEntry{
		IssuerID:      issuerID,
		Principal:     principal,
		Authority:     authority,
		MintCap:       mintCap,
		Active:        true,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := tx.InsertIssuer(ctx, e); err != nil {
		return nil, err
	}
	p.IssuerCount = count
	if err := tx.UpdateProgram(ctx, p); err != nil {
		return nil, err
	}
	return e, nil
}

// SetIssuerStatusTx updates an issuer's active flag and, when newCap is
// set, its cap.
func SetIssuerStatusTx(ctx context.Context, tx domain.Tx, cfg *domain.ProgramConfig,
	issuerID string, active bool, newCap *uint64, now int64) (*domain.IssuerEntry, error) {
	e, err := tx.GetIssuer(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	if newCap != nil {
		if *newCap == 0 || *newCap > cfg.MaxMintAmount {
			return nil, domain.ErrInvalidAmount
		}
		e.MintCap = *newCap
	}
	e.Active = active
	e.LastUpdatedAt = now
	if err := tx.UpdateIssuer(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}
