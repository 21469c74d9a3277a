package governance

import (
	"context"

	"github.com/learnreward/rewardplane/internal/app/gate"
	"github.com/learnreward/rewardplane/internal/app/issuance"
	"github.com/learnreward/rewardplane/internal/domain"
)

// apply performs an effect inside the executing transaction. r is the
// registry the proposal belongs to; signer-set effects modify it. The
// returned program state is non-nil when the effect changed the gate.
func (e *Engine) apply(ctx context.Context, tx domain.Tx, r *domain.TrusteeRegistry, effect domain.Effect, now int64) (*domain.ProgramState, error) {
	switch eff := effect.(type) {
	case domain.ChangeAuthority:
		p, err := tx.GetProgram(ctx)
		if err != nil {
			return nil, err
		}
		p.Authority = eff.NewAuthority
		return nil, tx.UpdateProgram(ctx, p)

	case domain.TogglePause:
		// No gate check: pausing and resuming work whatever the gate says.
		p, err := tx.GetProgram(ctx)
		if err != nil {
			return nil, err
		}
		gate.ApplyGlobal(p, eff.Paused)
		if err := tx.UpdateProgram(ctx, p); err != nil {
			return nil, err
		}
		return p, nil

	case domain.RegisterIssuer:
		p, cfg, err := registerContext(ctx, tx)
		if err != nil {
			return nil, err
		}
		_, err = issuance.RegisterIssuerTx(ctx, tx, p, cfg, p.Authority, eff.IssuerID, eff.Principal, eff.MintCap, now)
		return nil, err

	case domain.UpdateIssuerStatus:
		_, cfg, err := registerContext(ctx, tx)
		if err != nil {
			return nil, err
		}
		_, err = issuance.SetIssuerStatusTx(ctx, tx, cfg, eff.IssuerID, eff.Active, eff.MintCap, now)
		return nil, err

	case domain.AddSigner:
		if r.IsSigner(eff.Signer) {
			return nil, domain.ErrSignerAlreadyExists
		}
		if len(r.Signers) >= domain.MaxSigners {
			return nil, domain.ErrMaxSignersReached
		}
		r.Signers = append(r.Signers, eff.Signer)
		return nil, tx.UpdateRegistry(ctx, r)

	case domain.RemoveSigner:
		i := r.SignerIndex(eff.Signer)
		if i < 0 {
			return nil, domain.ErrSignerNotFound
		}
		if eff.Signer == r.Authority {
			return nil, domain.ErrInvalidAuthority
		}
		if len(r.Signers)-1 < r.Threshold {
			return nil, domain.ErrInvalidThreshold
		}
		r.Signers = append(r.Signers[:i:i], r.Signers[i+1:]...)
		return nil, tx.UpdateRegistry(ctx, r)

	case domain.ChangeThreshold:
		if eff.Threshold < 1 || eff.Threshold > len(r.Signers) {
			return nil, domain.ErrInvalidThreshold
		}
		r.Threshold = eff.Threshold
		return nil, tx.UpdateRegistry(ctx, r)
	}
	return nil, domain.ErrInvalidEffect
}

// registerContext loads the program and config for directory effects and
// checks the REGISTER gate.
func registerContext(ctx context.Context, tx domain.Tx) (*domain.ProgramState, *domain.ProgramConfig, error) {
	p, err := tx.GetProgram(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := gate.Check(p, domain.PauseRegister); err != nil {
		return nil, nil, err
	}
	cfg, err := tx.GetConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}
