// Package program bootstraps the control plane and manages its policy
// config.
package program

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/learnreward/rewardplane/internal/app/gate"
	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/observability"
)

// Service owns the program singleton and its config.
type Service struct {
	store  domain.Store
	tracer *observability.Tracer
	log    zerolog.Logger
	now    func() time.Time
}

// New creates a program service.
func New(store domain.Store, tracer *observability.Tracer, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		tracer: tracer,
		log:    log.With().Str("component", "program").Logger(),
		now:    time.Now,
	}
}

// Status is the read model served by the status endpoint.
type Status struct {
	Program    *domain.ProgramState      `json:"program"`
	Config     *domain.ProgramConfig     `json:"config"`
	Registries []*domain.TrusteeRegistry `json:"registries"`
}

// Initialize creates the program state and config. It runs once; later
// calls fail with ErrAlreadyInitialized. A nil cfg selects the defaults.
func (s *Service) Initialize(ctx context.Context, authority, mintID string, cfg *domain.ProgramConfig) (*domain.ProgramState, error) {
	if authority == "" || mintID == "" {
		return nil, domain.ErrInvalidPrincipal
	}
	c := domain.DefaultProgramConfig()
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	now := s.now().Unix()
	p := &domain.ProgramState{
		Authority: authority,
		MintID:    mintID,
		CreatedAt: now,
	}
	c.LastUpdatedAt = now

	err := s.tracer.Track(ctx, "program.initialize", map[string]string{"authority": authority}, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			if err := tx.InsertProgram(ctx, p); err != nil {
				return err
			}
			return tx.InsertConfig(ctx, &c)
		})
	})
	if err != nil {
		return nil, err
	}
	observability.RecordGate(p)
	s.log.Info().Str("authority", authority).Str("mint", mintID).Msg("program initialized")
	return p, nil
}

// UpdateConfig applies a partial config change. The program must be
// running and only its authority may call it.
func (s *Service) UpdateConfig(ctx context.Context, caller string, update domain.ConfigUpdate) (*domain.ProgramConfig, error) {
	var out *domain.ProgramConfig
	err := s.tracer.Track(ctx, "program.update_config", map[string]string{"caller": caller}, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, err := tx.GetProgram(ctx)
			if err != nil {
				return err
			}
			if err := gate.CheckRunning(p); err != nil {
				return err
			}
			if caller != p.Authority {
				return domain.ErrUnauthorized
			}
			cur, err := tx.GetConfig(ctx)
			if err != nil {
				return err
			}
			if update.Empty() {
				out = cur
				return nil
			}
			next := update.Apply(*cur)
			if err := next.Validate(); err != nil {
				return err
			}
			next.LastUpdatedAt = s.now().Unix()
			if err := tx.UpdateConfig(ctx, &next); err != nil {
				return err
			}
			out = &next
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("caller", caller).Interface("config", out).Msg("program config updated")
	return out, nil
}

// Status returns the program, its config and any registries.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{}
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		p, err := tx.GetProgram(ctx)
		if err != nil {
			return err
		}
		c, err := tx.GetConfig(ctx)
		if err != nil {
			return err
		}
		st.Program, st.Config = p, c
		for _, kind := range []domain.RegistryKind{domain.RegistryStandard, domain.RegistryEmergency} {
			r, err := tx.GetRegistry(ctx, kind)
			if errors.Is(err, domain.ErrRegistryNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			st.Registries = append(st.Registries, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
