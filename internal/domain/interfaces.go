package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Store runs units of work against persistent state. Each RunInTx call is
// one atomic transaction: fn's writes commit together when it returns nil
// and are discarded otherwise.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of reads and writes available inside a transaction.
//
// Get methods return the lookup sentinel for their entity (ErrNotInitialized,
// ErrRegistryNotFound, ...) when no row exists. Insert methods fail on an
// address collision.
type Tx interface {
	GetProgram(ctx context.Context) (*ProgramState, error)
	InsertProgram(ctx context.Context, p *ProgramState) error // ErrAlreadyInitialized
	UpdateProgram(ctx context.Context, p *ProgramState) error

	GetConfig(ctx context.Context) (*ProgramConfig, error)
	InsertConfig(ctx context.Context, c *ProgramConfig) error // ErrAlreadyInitialized
	UpdateConfig(ctx context.Context, c *ProgramConfig) error

	GetRegistry(ctx context.Context, kind RegistryKind) (*TrusteeRegistry, error)
	InsertRegistry(ctx context.Context, r *TrusteeRegistry) error // ErrAlreadyInitialized
	UpdateRegistry(ctx context.Context, r *TrusteeRegistry) error

	GetProposal(ctx context.Context, kind RegistryKind, index uint64) (*Proposal, error)
	InsertProposal(ctx context.Context, p *Proposal) error // ErrAlreadyInitialized
	UpdateProposal(ctx context.Context, p *Proposal) error
	// ListProposals returns proposals in index order; a nil status means all.
	ListProposals(ctx context.Context, kind RegistryKind, status *ProposalStatus) ([]Proposal, error)

	GetIssuer(ctx context.Context, issuerID string) (*IssuerEntry, error)
	InsertIssuer(ctx context.Context, e *IssuerEntry) error // ErrAlreadyRegistered
	UpdateIssuer(ctx context.Context, e *IssuerEntry) error
	ListIssuers(ctx context.Context) ([]IssuerEntry, error)

	GetCourse(ctx context.Context, issuerID, courseID string) (*Course, error)
	InsertCourse(ctx context.Context, c *Course) error // ErrAlreadyInitialized
	UpdateCourse(ctx context.Context, c *Course) error
	ListCourses(ctx context.Context, issuerID string) ([]Course, error)
	InsertCourseHistory(ctx context.Context, h *CourseHistory) error
	ListCourseHistory(ctx context.Context, issuerID, courseID string) ([]CourseHistory, error)

	GetRecipient(ctx context.Context, recipient string) (*RecipientAccount, error)
	InsertRecipient(ctx context.Context, r *RecipientAccount) error // ErrAlreadyRegistered
	UpdateRecipient(ctx context.Context, r *RecipientAccount) error

	GetCompletion(ctx context.Context, recipient, courseID string) (*CompletionRecord, error)
	InsertCompletion(ctx context.Context, c *CompletionRecord) error // ErrCourseAlreadyCompleted
}

// AssetService moves, creates and destroys units of the reward asset. Every
// mutating call carries a proof of who authorized it.
type AssetService interface {
	Mint(ctx context.Context, asset, to string, amount uint64, proof AuthorityProof) error
	Burn(ctx context.Context, asset, from string, amount uint64, proof AuthorityProof) error
	Transfer(ctx context.Context, asset, from, to string, amount uint64, proof AuthorityProof) error
	BalanceOf(ctx context.Context, asset, account string) (uint64, error)
}

// ProofSigner produces authority proofs for a principal.
type ProofSigner interface {
	SignProof(principal, action string) (AuthorityProof, error)
}

// ProofVerifier checks an authority proof and returns the principal and
// action it was issued for.
type ProofVerifier interface {
	VerifyProof(proof AuthorityProof) (principal, action string, err error)
}
