// Package gate is the capability gate: the global pause switch plus the
// per-function pause mask consulted before every state-changing operation.
package gate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/observability"
)

// CheckRunning fails with ErrProgramPaused while the global switch is on.
func CheckRunning(p *domain.ProgramState) error {
	if p.Paused {
		return domain.ErrProgramPaused
	}
	return nil
}

// CheckFunction fails with ErrFunctionPaused while flag is paused, either
// directly or through the global switch.
func CheckFunction(p *domain.ProgramState, flag domain.PauseFlag) error {
	if p.Paused || p.PauseFlags&flag != 0 {
		return fmt.Errorf("%w: %s", domain.ErrFunctionPaused, flag)
	}
	return nil
}

// Check runs CheckRunning then CheckFunction.
func Check(p *domain.ProgramState, flag domain.PauseFlag) error {
	if err := CheckRunning(p); err != nil {
		return err
	}
	return CheckFunction(p, flag)
}

// ApplyGlobal sets the global switch. Pausing sets every function flag and
// resuming clears them all.
func ApplyGlobal(p *domain.ProgramState, paused bool) {
	p.Paused = paused
	if paused {
		p.PauseFlags = domain.PauseAll
	} else {
		p.PauseFlags = 0
	}
}

// ApplyFlags sets (enable) or clears the given bits.
func ApplyFlags(p *domain.ProgramState, flags domain.PauseFlag, enable bool) error {
	if flags == 0 || !flags.Valid() {
		return domain.ErrInvalidPauseFlags
	}
	if enable {
		p.PauseFlags |= flags
	} else {
		p.PauseFlags &^= flags
	}
	return nil
}

// ─── Gate Service ───────────────────────────────────────────────────────────

// Gate exposes the authority-only gate operations.
type Gate struct {
	store  domain.Store
	tracer *observability.Tracer
	log    zerolog.Logger
}

// New creates a gate service.
func New(store domain.Store, tracer *observability.Tracer, log zerolog.Logger) *Gate {
	return &Gate{
		store:  store,
		tracer: tracer,
		log:    log.With().Str("component", "gate").Logger(),
	}
}

// SetGlobal turns the global pause switch on or off. Only the program
// authority may call it. Setting the current value again succeeds.
func (g *Gate) SetGlobal(ctx context.Context, caller string, paused bool) (*domain.ProgramState, error) {
	var out *domain.ProgramState
	err := g.tracer.Track(ctx, "gate.set_global", map[string]string{"caller": caller}, func() error {
		return g.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, err := tx.GetProgram(ctx)
			if err != nil {
				return err
			}
			if caller != p.Authority {
				return domain.ErrUnauthorized
			}
			ApplyGlobal(p, paused)
			if err := tx.UpdateProgram(ctx, p); err != nil {
				return err
			}
			out = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	observability.RecordGate(out)
	g.log.Info().Str("caller", caller).Bool("paused", paused).Msg("global pause updated")
	return out, nil
}

// SetFlags enables or disables individual function flags. Only the program
// authority may call it; unknown bits fail with ErrInvalidPauseFlags.
func (g *Gate) SetFlags(ctx context.Context, caller string, flags domain.PauseFlag, enable bool) (*domain.ProgramState, error) {
	var out *domain.ProgramState
	err := g.tracer.Track(ctx, "gate.set_flags", map[string]string{"caller": caller}, func() error {
		return g.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, err := tx.GetProgram(ctx)
			if err != nil {
				return err
			}
			if caller != p.Authority {
				return domain.ErrUnauthorized
			}
			if err := ApplyFlags(p, flags, enable); err != nil {
				return err
			}
			if err := tx.UpdateProgram(ctx, p); err != nil {
				return err
			}
			out = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	observability.RecordGate(out)
	g.log.Info().
		Str("caller", caller).
		Uint32("flags", uint32(flags)).
		Bool("enable", enable).
		Uint32("mask", uint32(out.PauseFlags)).
		Msg("pause flags updated")
	return out, nil
}

// State returns a snapshot of the program state.
func (g *Gate) State(ctx context.Context) (*domain.ProgramState, error) {
	var out *domain.ProgramState
	err := g.store.RunInTx(ctx, func(tx domain.Tx) error {
		p, err := tx.GetProgram(ctx)
		out = p
		return err
	})
	return out, err
}
