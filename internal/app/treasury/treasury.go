// Package treasury guards holder-initiated movements of the reward asset:
// transfers with a front-running buffer and burns that keep the program's
// supply counters in step with the ledger.
package treasury

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/learnreward/rewardplane/internal/app/gate"
	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/observability"
)

// Proof actions signed for the ledger on the holder's behalf.
const (
	ActionTransfer = "transfer"
	ActionBurn     = "burn"
)

// Service implements guarded transfers and burns.
type Service struct {
	store  domain.Store
	assets domain.AssetService
	signer domain.ProofSigner
	tracer *observability.Tracer
	log    zerolog.Logger
}

// New creates a treasury service.
func New(store domain.Store, assets domain.AssetService, signer domain.ProofSigner,
	tracer *observability.Tracer, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		assets: assets,
		signer: signer,
		tracer: tracer,
		log:    log.With().Str("component", "treasury").Logger(),
	}
}

// Transfer moves amount from one holder to another. Only the holder of from
// may move its units, and it must keep a buffer of amount/10 on top of the
// transferred amount.
func (s *Service) Transfer(ctx context.Context, sender, from, to string, amount uint64) error {
	attrs := map[string]string{"from": from, "to": to}
	err := s.tracer.Track(ctx, "treasury.transfer", attrs, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, err := tx.GetProgram(ctx)
			if err != nil {
				return err
			}
			if err := gate.Check(p, domain.PauseTransfer); err != nil {
				return err
			}
			if amount == 0 {
				return domain.ErrInvalidAmount
			}
			if to == "" {
				return domain.ErrInvalidPrincipal
			}
			if sender != from {
				return domain.ErrUnauthorized
			}
			need, err := domain.TransferRequirement(amount)
			if err != nil {
				return err
			}
			bal, err := s.assets.BalanceOf(ctx, p.MintID, from)
			if err != nil {
				return err
			}
			if bal < need {
				return domain.ErrTransferFrontRunning
			}
			proof, err := s.signer.SignProof(sender, ActionTransfer)
			if err != nil {
				return err
			}
			return s.assets.Transfer(ctx, p.MintID, from, to, amount, proof)
		})
	})
	if err != nil {
		return err
	}
	observability.UnitsTransferred.Add(float64(amount))
	s.log.Info().Str("from", from).Str("to", to).Uint64("amount", amount).Msg("transfer completed")
	return nil
}

// Burn destroys amount of owner's units and adds it to total_burned.
func (s *Service) Burn(ctx context.Context, owner string, amount uint64) error {
	err := s.tracer.Track(ctx, "treasury.burn", map[string]string{"owner": owner}, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			p, err := tx.GetProgram(ctx)
			if err != nil {
				return err
			}
			if err := gate.Check(p, domain.PauseBurn); err != nil {
				return err
			}
			if amount == 0 {
				return domain.ErrInvalidAmount
			}
			bal, err := s.assets.BalanceOf(ctx, p.MintID, owner)
			if err != nil {
				return err
			}
			if bal < amount {
				return domain.ErrInsufficientBalance
			}
			burned, err := domain.CheckedAdd(p.TotalBurned, amount)
			if err != nil {
				return err
			}
			p.TotalBurned = burned
			if err := tx.UpdateProgram(ctx, p); err != nil {
				return err
			}

			proof, err := s.signer.SignProof(owner, ActionBurn)
			if err != nil {
				return err
			}
			return s.assets.Burn(ctx, p.MintID, owner, amount, proof)
		})
	})
	if err != nil {
		return err
	}
	observability.UnitsBurned.Add(float64(amount))
	s.log.Info().Str("owner", owner).Uint64("amount", amount).Msg("units burned")
	return nil
}

// Balance returns a holder's balance of the program's asset.
func (s *Service) Balance(ctx context.Context, account string) (uint64, error) {
	var mintID string
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		p, err := tx.GetProgram(ctx)
		if err != nil {
			return err
		}
		mintID = p.MintID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return s.assets.BalanceOf(ctx, mintID, account)
}
