// Package daemon wires the control plane from its config and runs the HTTP
// API until the context is cancelled.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/learnreward/rewardplane/internal/api"
	"github.com/learnreward/rewardplane/internal/app/gate"
	"github.com/learnreward/rewardplane/internal/app/governance"
	"github.com/learnreward/rewardplane/internal/app/issuance"
	"github.com/learnreward/rewardplane/internal/app/program"
	"github.com/learnreward/rewardplane/internal/app/treasury"
	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/ledger"
	"github.com/learnreward/rewardplane/internal/infra/observability"
	"github.com/learnreward/rewardplane/internal/infra/sqlite"
	"github.com/learnreward/rewardplane/internal/security"
)

const shutdownTimeout = 10 * time.Second

// Daemon owns the opened stores and the application services.
type Daemon struct {
	cfg    *Config
	log    zerolog.Logger
	db     *sqlite.DB
	ledger *ledger.Local
	sec    *security.Service
	tracer *observability.Tracer
	svc    api.Services
}

// New validates cfg, opens the state database and the ledger under home,
// and builds the services.
func New(home string, cfg *Config, log zerolog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	sec, err := security.NewService(cfg.Security.SigningKey, cfg.Security.Issuer)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(resolve(home, cfg.Storage.Dir, "data"))
	if err != nil {
		return nil, err
	}
	l, err := ledger.Open(resolve(home, cfg.Ledger.Dir, "ledger"), sec, cfg.Ledger.Identity, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	tracer := observability.NewTracer(observability.TracerConfig{
		Enabled:  true,
		MaxSpans: cfg.Metrics.TraceSpans,
	})

	d := &Daemon{
		cfg:    cfg,
		log:    log.With().Str("component", "daemon").Logger(),
		db:     db,
		ledger: l,
		sec:    sec,
		tracer: tracer,
	}
	d.svc = api.Services{
		Program:    program.New(db, tracer, log),
		Gate:       gate.New(db, tracer, log),
		Governance: governance.NewEngine(db, tracer, log),
		Issuance:   issuance.New(db, l, sec, cfg.Ledger.Identity, tracer, log),
		Treasury:   treasury.New(db, l, sec, tracer, log),
	}
	return d, nil
}

// Services returns the wired application services.
func (d *Daemon) Services() api.Services { return d.svc }

// Initialize bootstraps the program with the configured asset and policy.
func (d *Daemon) Initialize(ctx context.Context, authority string) (*domain.ProgramState, error) {
	pc, err := d.cfg.ProgramConfig()
	if err != nil {
		return nil, err
	}
	p, err := d.svc.Program.Initialize(ctx, authority, d.cfg.Ledger.Asset, &pc)
	if err != nil {
		return nil, err
	}
	d.log.Info().Str("authority", authority).Str("asset", p.MintID).Msg("program initialized")
	return p, nil
}

// IssueToken signs a bearer token for principal. A zero ttl selects the
// configured default.
func (d *Daemon) IssueToken(principal string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		var err error
		if ttl, err = d.cfg.TokenTTL(); err != nil {
			return "", err
		}
	}
	return d.sec.IssueToken(principal, ttl)
}

// Handler builds the API handler.
func (d *Daemon) Handler() http.Handler {
	srv := api.NewServer(d.svc, d.sec, d.tracer, d.log)
	if d.cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}
	return srv.Handler()
}

// Run listens on the configured address and serves until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.cfg.Addr(), err)
	}
	return d.Serve(ctx, ln)
}

// Serve serves the API on ln. Cancelling ctx shuts the server down
// gracefully; Serve returns once in-flight requests finish.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if st, err := d.svc.Gate.State(ctx); err == nil {
		observability.RecordGate(st)
	} else if !errors.Is(err, domain.ErrNotInitialized) {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.log.Info().Str("addr", ln.Addr().String()).Msg("serving api")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		d.log.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// Close releases the ledger and the state database.
func (d *Daemon) Close() error {
	return errors.Join(d.ledger.Close(), d.db.Close())
}
