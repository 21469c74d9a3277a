package domain

import (
	"encoding/json"
	"fmt"
)

// ─── Trustee Registries ─────────────────────────────────────────────────────

// RegistryKind names one of the two independent trustee groups.
type RegistryKind string

const (
	RegistryStandard  RegistryKind = "standard"
	RegistryEmergency RegistryKind = "emergency"
)

// Valid reports whether k is a known registry kind.
func (k RegistryKind) Valid() bool {
	return k == RegistryStandard || k == RegistryEmergency
}

// TrusteeRegistry is a fixed signer set plus approval threshold.
type TrusteeRegistry struct {
	Kind          RegistryKind `json:"kind"`
	Signers       []string     `json:"signers"`
	Threshold     int          `json:"threshold"`
	ProposalCount uint64       `json:"proposal_count"`
	Authority     string       `json:"authority"`
	CreatedAt     int64        `json:"created_at"`
}

// Address is the registry's deterministic address.
func (r *TrusteeRegistry) Address() string {
	return DeriveAddress("registry", string(r.Kind))
}

// IsSigner reports whether p is a member of the registry.
func (r *TrusteeRegistry) IsSigner(p string) bool {
	return r.SignerIndex(p) >= 0
}

// SignerIndex returns p's position in Signers, or -1.
func (r *TrusteeRegistry) SignerIndex(p string) int {
	for i, s := range r.Signers {
		if s == p {
			return i
		}
	}
	return -1
}

// ValidateRegistry checks a signer set and threshold. The duplicate check is
// a full pairwise scan.
func ValidateRegistry(signers []string, threshold int) error {
	if len(signers) == 0 {
		return ErrInvalidMultisigConfig
	}
	if len(signers) > MaxSigners {
		return ErrMaxSignersReached
	}
	if threshold <= 0 || threshold > len(signers) {
		return ErrInvalidThreshold
	}
	for i := range signers {
		if signers[i] == "" {
			return ErrInvalidPrincipal
		}
		for j := i + 1; j < len(signers); j++ {
			if signers[i] == signers[j] {
				return ErrSignerAlreadyExists
			}
		}
	}
	return nil
}

// ─── Proposals ──────────────────────────────────────────────────────────────

// ProposalStatus is the proposal lifecycle state. Active is the only
// non-terminal state.
type ProposalStatus int

const (
	PropActive ProposalStatus = iota
	PropExecuted
	PropCancelled
	PropExpired
)

// String returns the stored/wire name of the status.
func (s ProposalStatus) String() string {
	switch s {
	case PropActive:
		return "ACTIVE"
	case PropExecuted:
		return "EXECUTED"
	case PropCancelled:
		return "CANCELLED"
	case PropExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// ParseProposalStatus is the inverse of String.
func ParseProposalStatus(s string) (ProposalStatus, bool) {
	switch s {
	case "ACTIVE":
		return PropActive, true
	case "EXECUTED":
		return PropExecuted, true
	case "CANCELLED":
		return PropCancelled, true
	case "EXPIRED":
		return PropExpired, true
	}
	return 0, false
}

// MarshalJSON encodes the status by name.
func (s ProposalStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Terminal reports whether no further transition is possible.
func (s ProposalStatus) Terminal() bool {
	return s != PropActive
}

// Proposal is a governance action awaiting (or past) quorum.
//
// Approvals is keyed by signer identity. At creation it holds exactly one
// entry per registry member, with only the proposer set.
type Proposal struct {
	Registry    RegistryKind    `json:"registry"`
	Index       uint64          `json:"index"`
	Effect      Effect          `json:"-"`
	Approvals   map[string]bool `json:"approvals"`
	Status      ProposalStatus  `json:"status"`
	Proposer    string          `json:"proposer"`
	Executor    string          `json:"executor,omitempty"`
	Description string          `json:"description"`
	CreatedAt   int64           `json:"created_at"`
	ClosedAt    *int64          `json:"closed_at,omitempty"`
}

// Address is the proposal's deterministic address.
func (p *Proposal) Address() string {
	return ProposalAddress(p.Registry, p.Index)
}

// ProposalAddress derives the address of proposal index in registry kind.
func ProposalAddress(kind RegistryKind, index uint64) string {
	return DeriveAddress("proposal", string(kind), fmt.Sprintf("%d", index))
}

// ApprovalCount counts approvals from signers that are still members of r.
// Approvals recorded by removed signers no longer count toward quorum.
func (p *Proposal) ApprovalCount(r *TrusteeRegistry) int {
	n := 0
	for signer, ok := range p.Approvals {
		if ok && r.IsSigner(signer) {
			n++
		}
	}
	return n
}

// Expired reports whether the proposal has outlived its window at now.
func (p *Proposal) Expired(now, window int64) bool {
	return now-p.CreatedAt > window
}

// MarshalJSON adds the encoded effect to the proposal payload.
func (p Proposal) MarshalJSON() ([]byte, error) {
	type alias Proposal
	effect, err := EncodeEffect(p.Effect)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		Effect json.RawMessage `json:"effect"`
	}{alias(p), effect})
}
