package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/learnreward/rewardplane/internal/domain"
)

// ─── Program State Operations ───────────────────────────────────────────────

// GetProgram loads the program singleton.
func (t *Tx) GetProgram(ctx context.Context) (*domain.ProgramState, error) {
	var (
		p              domain.ProgramState
		minted, burned int64
		paused, flags  int
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT authority, mint_id, total_minted, total_burned, issuer_count, paused, pause_flags, created_at
		FROM program_state WHERE address = ?
	`, domain.ProgramAddress()).Scan(&p.Authority, &p.MintID, &minted, &burned, &p.IssuerCount, &paused, &flags, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	p.TotalMinted = u64(minted)
	p.TotalBurned = u64(burned)
	p.Paused = paused == 1
	p.PauseFlags = domain.PauseFlag(flags)
	return &p, nil
}

// InsertProgram creates the program singleton.
func (t *Tx) InsertProgram(ctx context.Context, p *domain.ProgramState) error {
	return t.insertOnce(ctx, domain.ErrAlreadyInitialized, `
		INSERT INTO program_state (address, authority, mint_id, total_minted, total_burned, issuer_count, paused, pause_flags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, domain.ProgramAddress(), p.Authority, p.MintID, i64(p.TotalMinted), i64(p.TotalBurned),
		p.IssuerCount, boolInt(p.Paused), int(p.PauseFlags), p.CreatedAt)
}

// UpdateProgram persists the mutable program fields.
func (t *Tx) UpdateProgram(ctx context.Context, p *domain.ProgramState) error {
	return t.updateOne(ctx, domain.ErrNotInitialized, `
		UPDATE program_state SET
			authority    = ?,
			total_minted = ?,
			total_burned = ?,
			issuer_count = ?,
			paused       = ?,
			pause_flags  = ?
		WHERE address = ?
	`, p.Authority, i64(p.TotalMinted), i64(p.TotalBurned), p.IssuerCount,
		boolInt(p.Paused), int(p.PauseFlags), domain.ProgramAddress())
}

// ─── Program Config Operations ──────────────────────────────────────────────

// GetConfig loads the policy config.
func (t *Tx) GetConfig(ctx context.Context) (*domain.ProgramConfig, error) {
	var (
		c       domain.ProgramConfig
		maxMint int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT max_issuers, max_courses_per_issuer, max_mint_amount, mint_cooldown, proposal_expiration, last_updated_at
		FROM program_config WHERE address = ?
	`, domain.ProgramAddress()).Scan(&c.MaxIssuers, &c.MaxCoursesPerIssuer, &maxMint,
		&c.MintCooldown, &c.ProposalExpiration, &c.LastUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	c.MaxMintAmount = u64(maxMint)
	return &c, nil
}

// InsertConfig creates the policy config.
func (t *Tx) InsertConfig(ctx context.Context, c *domain.ProgramConfig) error {
	return t.insertOnce(ctx, domain.ErrAlreadyInitialized, `
		INSERT INTO program_config (address, max_issuers, max_courses_per_issuer, max_mint_amount, mint_cooldown, proposal_expiration, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, domain.ProgramAddress(), c.MaxIssuers, c.MaxCoursesPerIssuer, i64(c.MaxMintAmount),
		c.MintCooldown, c.ProposalExpiration, c.LastUpdatedAt)
}

// UpdateConfig persists the policy config.
func (t *Tx) UpdateConfig(ctx context.Context, c *domain.ProgramConfig) error {
	return t.updateOne(ctx, domain.ErrNotInitialized, `
		UPDATE program_config SET
			max_issuers            = ?,
			max_courses_per_issuer = ?,
			max_mint_amount        = ?,
			mint_cooldown          = ?,
			proposal_expiration    = ?,
			last_updated_at        = ?
		WHERE address = ?
	`, c.MaxIssuers, c.MaxCoursesPerIssuer, i64(c.MaxMintAmount), c.MintCooldown,
		c.ProposalExpiration, c.LastUpdatedAt, domain.ProgramAddress())
}
