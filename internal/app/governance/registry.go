// Package governance implements the trustee registries and the proposal
// engine that applies governance effects once a quorum approves them.
//
// Two registries exist side by side: the standard registry may carry any
// effect, the emergency registry only pause toggles. Proposal state moves
//
//	Active → Executed | Cancelled | Expired
//
// and every transition happens inside one store transaction together with
// the effect it applies.
package governance

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/learnreward/rewardplane/internal/app/gate"
	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/observability"
)

// Engine owns the registries and their proposals.
type Engine struct {
	store  domain.Store
	tracer *observability.Tracer
	log    zerolog.Logger
	now    func() time.Time
}

// NewEngine creates a governance engine.
func NewEngine(store domain.Store, tracer *observability.Tracer, log zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		tracer: tracer,
		log:    log.With().Str("component", "governance").Logger(),
		now:    time.Now,
	}
}

// CreateRegistry creates the registry of the given kind. Each kind exists at
// most once. The emergency registry can only be created by the program
// authority while the program is running.
func (e *Engine) CreateRegistry(ctx context.Context, kind domain.RegistryKind, signers []string, threshold int, authority string) (*domain.TrusteeRegistry, error) {
	if !kind.Valid() {
		return nil, domain.ErrRegistryNotFound
	}
	if err := domain.ValidateRegistry(signers, threshold); err != nil {
		return nil, err
	}

	r := &domain.TrusteeRegistry{
		Kind:      kind,
		Signers:   append([]string(nil), signers...),
		Threshold: threshold,
		Authority: authority,
	}
	if !r.IsSigner(authority) {
		return nil, domain.ErrUnauthorized
	}

	err := e.tracer.Track(ctx, "governance.create_registry", map[string]string{"kind": string(kind)}, func() error {
		return e.store.RunInTx(ctx, func(tx domain.Tx) error {
			if kind == domain.RegistryEmergency {
				p, err := tx.GetProgram(ctx)
				if err != nil {
					return err
				}
				if err := gate.CheckRunning(p); err != nil {
					return err
				}
				if authority != p.Authority {
					return domain.ErrUnauthorized
				}
			}
			r.CreatedAt = e.now().Unix()
			return tx.InsertRegistry(ctx, r)
		})
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().
		Str("kind", string(kind)).
		Int("signers", len(r.Signers)).
		Int("threshold", threshold).
		Msg("registry created")
	return r, nil
}

// Registry returns the registry of the given kind.
func (e *Engine) Registry(ctx context.Context, kind domain.RegistryKind) (*domain.TrusteeRegistry, error) {
	if !kind.Valid() {
		return nil, domain.ErrRegistryNotFound
	}
	var out *domain.TrusteeRegistry
	err := e.store.RunInTx(ctx, func(tx domain.Tx) error {
		r, err := tx.GetRegistry(ctx, kind)
		out = r
		return err
	})
	return out, err
}
