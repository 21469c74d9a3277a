// Package ledger is the local Ledger Asset Service: balances of the reward
// asset plus an append-only journal, kept in a SQLite file of its own.
//
// Every mutating call carries an authority proof. Mints are accepted only
// from the control plane identity; transfers only from the source account's
// owner; burns from the owner or the control plane (compensation).
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/sqlite"
)

// FileName is the ledger database inside the data directory.
const FileName = "ledger.db"

// Proof actions.
const (
	ActionMint     = "mint"
	ActionBurn     = "burn"
	ActionTransfer = "transfer"
)

// ErrProofRejected is returned when a proof does not authorize the call.
var ErrProofRejected = fmt.Errorf("ledger: authority proof rejected: %w", domain.ErrUnauthorized)

// Migrations returns the ledger schema.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS balances (
			asset   TEXT NOT NULL,
			account TEXT NOT NULL,
			balance INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (asset, account)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id         TEXT PRIMARY KEY,
			reference  TEXT NOT NULL,
			timestamp  INTEGER NOT NULL,
			type       TEXT NOT NULL,
			entry_type TEXT NOT NULL,
			asset      TEXT NOT NULL,
			account    TEXT NOT NULL,
			amount     INTEGER NOT NULL,
			balance    INTEGER NOT NULL,
			signer     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(asset, account, timestamp)`,
	}
}

// Local implements domain.AssetService on SQLite.
type Local struct {
	db       *sqlite.DB
	verifier domain.ProofVerifier
	minter   string
	log      zerolog.Logger
	now      func() time.Time
}

var _ domain.AssetService = (*Local)(nil)

// Open opens the ledger in dir. minter is the only principal allowed to mint.
func Open(dir string, verifier domain.ProofVerifier, minter string, log zerolog.Logger) (*Local, error) {
	db, err := sqlite.OpenWith(filepath.Join(dir, FileName), Migrations())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &Local{
		db:       db,
		verifier: verifier,
		minter:   minter,
		log:      log.With().Str("component", "ledger").Logger(),
		now:      time.Now,
	}, nil
}

// Close releases the ledger database.
func (l *Local) Close() error { return l.db.Close() }

// ─── AssetService ───────────────────────────────────────────────────────────

// Mint credits amount to account to.
func (l *Local) Mint(ctx context.Context, asset, to string, amount uint64, proof domain.AuthorityProof) error {
	signer, err := l.authorize(proof, ActionMint, l.minter)
	if err != nil {
		return err
	}
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	return l.withTx(ctx, func(tx *sql.Tx) error {
		ref := uuid.NewString()
		bal, err := l.credit(ctx, tx, asset, to, amount)
		if err != nil {
			return err
		}
		return l.journal(ctx, tx, ref, domain.TxMint, domain.EntryCredit, asset, to, amount, bal, signer)
	})
}

// Burn debits amount from account from.
func (l *Local) Burn(ctx context.Context, asset, from string, amount uint64, proof domain.AuthorityProof) error {
	signer, err := l.authorize(proof, ActionBurn, from, l.minter)
	if err != nil {
		return err
	}
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	return l.withTx(ctx, func(tx *sql.Tx) error {
		ref := uuid.NewString()
		bal, err := l.debit(ctx, tx, asset, from, amount)
		if err != nil {
			return err
		}
		return l.journal(ctx, tx, ref, domain.TxBurn, domain.EntryDebit, asset, from, amount, bal, signer)
	})
}

// Transfer moves amount from one account to another.
func (l *Local) Transfer(ctx context.Context, asset, from, to string, amount uint64, proof domain.AuthorityProof) error {
	signer, err := l.authorize(proof, ActionTransfer, from)
	if err != nil {
		return err
	}
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	return l.withTx(ctx, func(tx *sql.Tx) error {
		ref := uuid.NewString()
		fromBal, err := l.debit(ctx, tx, asset, from, amount)
		if err != nil {
			return err
		}
		if err := l.journal(ctx, tx, ref, domain.TxTransfer, domain.EntryDebit, asset, from, amount, fromBal, signer); err != nil {
			return err
		}
		toBal, err := l.credit(ctx, tx, asset, to, amount)
		if err != nil {
			return err
		}
		return l.journal(ctx, tx, ref, domain.TxTransfer, domain.EntryCredit, asset, to, amount, toBal, signer)
	})
}

// BalanceOf returns the balance of account; unknown accounts hold zero.
func (l *Local) BalanceOf(ctx context.Context, asset, account string) (uint64, error) {
	var bal int64
	err := l.db.SQL().QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE asset = ? AND account = ?`, asset, account,
	).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", account, err)
	}
	return uint64(bal), nil
}

// Entries returns the journal rows for an account, oldest first.
func (l *Local) Entries(ctx context.Context, asset, account string) ([]domain.LedgerEntry, error) {
	rows, err := l.db.SQL().QueryContext(ctx, `
		SELECT id, reference, timestamp, type, entry_type, asset, account, amount, balance, signer
		FROM ledger_entries WHERE asset = ? AND account = ?
		ORDER BY timestamp, rowid
	`, asset, account)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e               domain.LedgerEntry
			ts, amount, bal int64
		)
		if err := rows.Scan(&e.ID, &e.Reference, &ts, &e.Type, &e.EntryType, &e.Asset,
			&e.Account, &amount, &bal, &e.Signer); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Amount = uint64(amount)
		e.Balance = uint64(bal)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── Internals ──────────────────────────────────────────────────────────────

// authorize verifies proof and checks that it names action and one of the
// allowed principals.
func (l *Local) authorize(proof domain.AuthorityProof, action string, allowed ...string) (string, error) {
	principal, got, err := l.verifier.VerifyProof(proof)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	if got != action {
		return "", fmt.Errorf("%w: proof is for %q, not %q", ErrProofRejected, got, action)
	}
	for _, a := range allowed {
		if a != "" && principal == a {
			return principal, nil
		}
	}
	l.log.Warn().Str("principal", principal).Str("action", action).Msg("proof principal not allowed")
	return "", fmt.Errorf("%w: principal %q not allowed to %s", ErrProofRejected, principal, action)
}

func (l *Local) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func (l *Local) balance(ctx context.Context, tx *sql.Tx, asset, account string) (uint64, error) {
	var bal int64
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE asset = ? AND account = ?`, asset, account,
	).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(bal), nil
}

func (l *Local) setBalance(ctx context.Context, tx *sql.Tx, asset, account string, bal uint64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO balances (asset, account, balance) VALUES (?, ?, ?)
		ON CONFLICT(asset, account) DO UPDATE SET balance = excluded.balance
	`, asset, account, int64(bal))
	return err
}

func (l *Local) credit(ctx context.Context, tx *sql.Tx, asset, account string, amount uint64) (uint64, error) {
	bal, err := l.balance(ctx, tx, asset, account)
	if err != nil {
		return 0, err
	}
	next, err := domain.CheckedAdd(bal, amount)
	if err != nil {
		return 0, err
	}
	return next, l.setBalance(ctx, tx, asset, account, next)
}

func (l *Local) debit(ctx context.Context, tx *sql.Tx, asset, account string, amount uint64) (uint64, error) {
	bal, err := l.balance(ctx, tx, asset, account)
	if err != nil {
		return 0, err
	}
	if bal < amount {
		return 0, domain.ErrInsufficientBalance
	}
	next := bal - amount
	return next, l.setBalance(ctx, tx, asset, account, next)
}

func (l *Local) journal(ctx context.Context, tx *sql.Tx, ref string, typ domain.TransactionType,
	side domain.EntryType, asset, account string, amount, balance uint64, signer string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, reference, timestamp, type, entry_type, asset, account, amount, balance, signer)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), ref, l.now().UnixNano(), string(typ), string(side), asset, account,
		int64(amount), int64(balance), signer)
	if err != nil {
		return fmt.Errorf("journal %s: %w", typ, err)
	}
	l.log.Debug().
		Str("type", string(typ)).
		Str("account", account).
		Uint64("amount", amount).
		Msg("ledger entry")
	return nil
}
