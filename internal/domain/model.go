// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of the control plane; it depends on nothing.
package domain

import "time"

// ─── Policy Limits ──────────────────────────────────────────────────────────
// Defaults for the numeric policy. The mutable subset lives in ProgramConfig
// and can be changed by the program authority.

const (
	MaxSigners           = 10
	MaxDescriptionLength = 200
	MaxCourseIDLength    = 50
	MaxCourseNameLength  = 100

	DefaultProposalExpiration  = 604800 // seconds (7 days)
	DefaultMintCooldown        = 7200   // seconds (2 hours)
	DefaultMaxMintAmount       = uint64(1_000_000_000_000_000)
	DefaultMaxIssuers          = 1000
	DefaultMaxCoursesPerIssuer = 100

	// FrontRunningBufferDivisor sets the transfer safety margin: a transfer
	// of n units requires a balance of at least n + n/FrontRunningBufferDivisor.
	FrontRunningBufferDivisor = 10
)

// ─── Capability Gate ────────────────────────────────────────────────────────

// PauseFlag is one bit of the per-function pause mask.
type PauseFlag uint32

const (
	PauseMint PauseFlag = 1 << iota
	PauseTransfer
	PauseBurn
	PauseRegister
	PauseCourse

	PauseAll = PauseMint | PauseTransfer | PauseBurn | PauseRegister | PauseCourse
)

// String returns a readable name for a single flag.
func (f PauseFlag) String() string {
	switch f {
	case PauseMint:
		return "MINT"
	case PauseTransfer:
		return "TRANSFER"
	case PauseBurn:
		return "BURN"
	case PauseRegister:
		return "REGISTER"
	case PauseCourse:
		return "COURSE"
	case PauseAll:
		return "ALL"
	case 0:
		return "NONE"
	default:
		return "MIXED"
	}
}

// Valid reports whether f only contains known bits.
func (f PauseFlag) Valid() bool {
	return f&^PauseAll == 0
}

// ParsePauseFlag resolves a flag name as used on the wire.
func ParsePauseFlag(name string) (PauseFlag, bool) {
	switch name {
	case "MINT", "mint":
		return PauseMint, true
	case "TRANSFER", "transfer":
		return PauseTransfer, true
	case "BURN", "burn":
		return PauseBurn, true
	case "REGISTER", "register":
		return PauseRegister, true
	case "COURSE", "course":
		return PauseCourse, true
	case "ALL", "all":
		return PauseAll, true
	}
	return 0, false
}

// ─── Program State ──────────────────────────────────────────────────────────

// ProgramState is the singleton aggregate holding the authority, supply
// counters and the capability gate.
type ProgramState struct {
	Authority   string    `json:"authority"`
	MintID      string    `json:"mint_id"`
	TotalMinted uint64    `json:"total_minted"`
	TotalBurned uint64    `json:"total_burned"`
	IssuerCount uint32    `json:"issuer_count"`
	Paused      bool      `json:"paused"`
	PauseFlags  PauseFlag `json:"pause_flags"`
	CreatedAt   int64     `json:"created_at"`
}

// EffectiveFlags returns the mask actually enforced: everything while the
// global switch is on.
func (p *ProgramState) EffectiveFlags() PauseFlag {
	if p.Paused {
		return PauseAll
	}
	return p.PauseFlags
}

// ProgramConfig holds the policy values the authority may tune.
type ProgramConfig struct {
	MaxIssuers          uint32 `json:"max_issuers"`
	MaxCoursesPerIssuer uint32 `json:"max_courses_per_issuer"`
	MaxMintAmount       uint64 `json:"max_mint_amount"`
	MintCooldown        int64  `json:"mint_cooldown"`       // seconds
	ProposalExpiration  int64  `json:"proposal_expiration"` // seconds
	LastUpdatedAt       int64  `json:"last_updated_at"`
}

// DefaultProgramConfig returns the reference policy.
func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		MaxIssuers:          DefaultMaxIssuers,
		MaxCoursesPerIssuer: DefaultMaxCoursesPerIssuer,
		MaxMintAmount:       DefaultMaxMintAmount,
		MintCooldown:        DefaultMintCooldown,
		ProposalExpiration:  DefaultProposalExpiration,
	}
}

// Validate checks the config bounds.
func (c ProgramConfig) Validate() error {
	if c.MaxMintAmount == 0 || c.MintCooldown < 0 || c.ProposalExpiration <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxIssuers == 0 || c.MaxCoursesPerIssuer == 0 {
		return ErrInvalidConfig
	}
	return nil
}

// CooldownDuration returns the mint cooldown as a time.Duration.
func (c ProgramConfig) CooldownDuration() time.Duration {
	return time.Duration(c.MintCooldown) * time.Second
}

// ConfigUpdate carries optional config changes; nil fields are left alone.
type ConfigUpdate struct {
	MaxIssuers          *uint32 `json:"max_issuers,omitempty"`
	MaxCoursesPerIssuer *uint32 `json:"max_courses_per_issuer,omitempty"`
	MaxMintAmount       *uint64 `json:"max_mint_amount,omitempty"`
	MintCooldown        *int64  `json:"mint_cooldown,omitempty"`
	ProposalExpiration  *int64  `json:"proposal_expiration,omitempty"`
}

// Empty reports whether the update carries no changes.
func (u ConfigUpdate) Empty() bool {
	return u.MaxIssuers == nil && u.MaxCoursesPerIssuer == nil && u.MaxMintAmount == nil &&
		u.MintCooldown == nil && u.ProposalExpiration == nil
}

// Apply returns c with the update applied.
func (u ConfigUpdate) Apply(c ProgramConfig) ProgramConfig {
	if u.MaxIssuers != nil {
		c.MaxIssuers = *u.MaxIssuers
	}
	if u.MaxCoursesPerIssuer != nil {
		c.MaxCoursesPerIssuer = *u.MaxCoursesPerIssuer
	}
	if u.MaxMintAmount != nil {
		c.MaxMintAmount = *u.MaxMintAmount
	}
	if u.MintCooldown != nil {
		c.MintCooldown = *u.MintCooldown
	}
	if u.ProposalExpiration != nil {
		c.ProposalExpiration = *u.ProposalExpiration
	}
	return c
}
