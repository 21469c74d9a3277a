package program

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/sqlite"
)

func fixedTime(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := New(db, nil, zerolog.Nop())
	s.now = fixedTime(1_000)
	return s
}

func TestInitialize(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p, err := s.Initialize(ctx, "root", "LRN", nil)
	if err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if p.Authority != "root" || p.CreatedAt != 1_000 {
		t.Errorf("program = %+v", p)
	}

	if _, err := s.Initialize(ctx, "other", "LRN", nil); !errors.Is(err, domain.ErrAlreadyInitialized) {
		t.Errorf("second Initialize() = %v, want ErrAlreadyInitialized", err)
	}

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Program.Authority != "root" {
		t.Errorf("authority = %q, want root", st.Program.Authority)
	}
	if st.Config.MaxMintAmount != domain.DefaultMaxMintAmount {
		t.Errorf("MaxMintAmount = %d, want default", st.Config.MaxMintAmount)
	}
	if len(st.Registries) != 0 {
		t.Errorf("registries = %d, want 0", len(st.Registries))
	}
}

func TestInitialize_InvalidConfig(t *testing.T) {
	s := newTestService(t)
	bad := domain.DefaultProgramConfig()
	bad.ProposalExpiration = 0
	if _, err := s.Initialize(context.Background(), "root", "LRN", &bad); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("Initialize() = %v, want ErrInvalidConfig", err)
	}
}

func TestUpdateConfig(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.Initialize(ctx, "root", "LRN", nil); err != nil {
		t.Fatal(err)
	}

	s.now = fixedTime(2_000)
	cd := int64(60)
	c, err := s.UpdateConfig(ctx, "root", domain.ConfigUpdate{MintCooldown: &cd})
	if err != nil {
		t.Fatalf("UpdateConfig() error: %v", err)
	}
	if c.MintCooldown != 60 || c.LastUpdatedAt != 2_000 {
		t.Errorf("config = %+v", c)
	}

	if _, err := s.UpdateConfig(ctx, "mallory", domain.ConfigUpdate{MintCooldown: &cd}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("UpdateConfig(mallory) = %v, want ErrUnauthorized", err)
	}

	zero := uint64(0)
	if _, err := s.UpdateConfig(ctx, "root", domain.ConfigUpdate{MaxMintAmount: &zero}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("UpdateConfig(max=0) = %v, want ErrInvalidConfig", err)
	}
}

func TestUpdateConfig_Paused(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.Initialize(ctx, "root", "LRN", nil); err != nil {
		t.Fatal(err)
	}
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		p, err := tx.GetProgram(ctx)
		if err != nil {
			return err
		}
		p.Paused = true
		return tx.UpdateProgram(ctx, p)
	})
	if err != nil {
		t.Fatal(err)
	}

	cd := int64(1)
	if _, err := s.UpdateConfig(ctx, "root", domain.ConfigUpdate{MintCooldown: &cd}); !errors.Is(err, domain.ErrProgramPaused) {
		t.Errorf("UpdateConfig() while paused = %v, want ErrProgramPaused", err)
	}
}
