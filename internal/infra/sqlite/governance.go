package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/learnreward/rewardplane/internal/domain"
)

// ─── Registry Operations ────────────────────────────────────────────────────

// GetRegistry loads a trustee registry by kind.
func (t *Tx) GetRegistry(ctx context.Context, kind domain.RegistryKind) (*domain.TrusteeRegistry, error) {
	var (
		r         domain.TrusteeRegistry
		signers   string
		propCount int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT kind, signers, threshold, proposal_count, authority, created_at
		FROM registries WHERE kind = ?
	`, string(kind)).Scan(&r.Kind, &signers, &r.Threshold, &propCount, &r.Authority, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRegistryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	if err := json.Unmarshal([]byte(signers), &r.Signers); err != nil {
		return nil, fmt.Errorf("decode signers: %w", err)
	}
	r.ProposalCount = u64(propCount)
	return &r, nil
}

// InsertRegistry creates a registry. A second registry of the same kind
// collides on its address.
func (t *Tx) InsertRegistry(ctx context.Context, r *domain.TrusteeRegistry) error {
	signers, err := json.Marshal(r.Signers)
	if err != nil {
		return fmt.Errorf("encode signers: %w", err)
	}
	return t.insertOnce(ctx, domain.ErrAlreadyInitialized, `
		INSERT INTO registries (kind, address, signers, threshold, proposal_count, authority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, string(r.Kind), r.Address(), string(signers), r.Threshold, i64(r.ProposalCount), r.Authority, r.CreatedAt)
}

// UpdateRegistry persists signers, threshold and the proposal counter.
func (t *Tx) UpdateRegistry(ctx context.Context, r *domain.TrusteeRegistry) error {
	signers, err := json.Marshal(r.Signers)
	if err != nil {
		return fmt.Errorf("encode signers: %w", err)
	}
	return t.updateOne(ctx, domain.ErrRegistryNotFound, `
		UPDATE registries SET signers = ?, threshold = ?, proposal_count = ?, authority = ?
		WHERE kind = ?
	`, string(signers), r.Threshold, i64(r.ProposalCount), r.Authority, string(r.Kind))
}

// ─── Proposal Operations ────────────────────────────────────────────────────

const proposalColumns = `registry, idx, effect, approvals, status, proposer, executor, description, created_at, closed_at`

// GetProposal loads a proposal by registry and index.
func (t *Tx) GetProposal(ctx context.Context, kind domain.RegistryKind, index uint64) (*domain.Proposal, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+proposalColumns+`
		FROM proposals WHERE address = ?
	`, domain.ProposalAddress(kind, index))
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProposalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// InsertProposal creates a proposal at its derived address.
func (t *Tx) InsertProposal(ctx context.Context, p *domain.Proposal) error {
	effect, approvals, err := encodeProposal(p)
	if err != nil {
		return err
	}
	return t.insertOnce(ctx, domain.ErrAlreadyInitialized, `
		INSERT INTO proposals (address, `+proposalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, p.Address(), string(p.Registry), i64(p.Index), effect, approvals, p.Status.String(),
		p.Proposer, p.Executor, p.Description, p.CreatedAt, p.ClosedAt)
}

// UpdateProposal persists approvals and lifecycle fields.
func (t *Tx) UpdateProposal(ctx context.Context, p *domain.Proposal) error {
	_, approvals, err := encodeProposal(p)
	if err != nil {
		return err
	}
	return t.updateOne(ctx, domain.ErrProposalNotFound, `
		UPDATE proposals SET approvals = ?, status = ?, executor = ?, closed_at = ?
		WHERE address = ?
	`, approvals, p.Status.String(), p.Executor, p.ClosedAt, p.Address())
}

// ListProposals returns a registry's proposals in index order.
func (t *Tx) ListProposals(ctx context.Context, kind domain.RegistryKind, status *domain.ProposalStatus) ([]domain.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE registry = ?`
	args := []any{string(kind)}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, status.String())
	}
	query += ` ORDER BY idx`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*domain.Proposal, error) {
	var (
		p                 domain.Proposal
		index             int64
		effect, approvals string
		status            string
		closedAt          sql.NullInt64
	)
	if err := row.Scan(&p.Registry, &index, &effect, &approvals, &status,
		&p.Proposer, &p.Executor, &p.Description, &p.CreatedAt, &closedAt); err != nil {
		return nil, err
	}
	p.Index = u64(index)
	e, err := domain.DecodeEffect([]byte(effect))
	if err != nil {
		return nil, err
	}
	p.Effect = e
	if err := json.Unmarshal([]byte(approvals), &p.Approvals); err != nil {
		return nil, fmt.Errorf("decode approvals: %w", err)
	}
	st, ok := domain.ParseProposalStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown proposal status %q", status)
	}
	p.Status = st
	if closedAt.Valid {
		v := closedAt.Int64
		p.ClosedAt = &v
	}
	return &p, nil
}

func encodeProposal(p *domain.Proposal) (effect, approvals string, err error) {
	e, err := domain.EncodeEffect(p.Effect)
	if err != nil {
		return "", "", err
	}
	a, err := json.Marshal(p.Approvals)
	if err != nil {
		return "", "", fmt.Errorf("encode approvals: %w", err)
	}
	return string(e), string(a), nil
}
