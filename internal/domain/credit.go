package domain

import "time"

// ─── Ledger Types ───────────────────────────────────────────────────────────
// The asset service keeps balances plus an append-only journal. These types
// are shared by every AssetService implementation.

// EntryType represents the accounting side of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TransactionType represents the business reason for a ledger movement.
type TransactionType string

const (
	TxMint     TransactionType = "MINT"
	TxBurn     TransactionType = "BURN"
	TxTransfer TransactionType = "TRANSFER"
)

// LedgerEntry is a single row in the asset journal. A transfer writes a
// debit and a credit sharing one Reference.
type LedgerEntry struct {
	ID        string          `json:"id"`
	Reference string          `json:"reference"`
	Timestamp time.Time       `json:"timestamp"`
	Type      TransactionType `json:"type"`
	EntryType EntryType       `json:"entry_type"`
	Asset     string          `json:"asset"`
	Account   string          `json:"account"`
	Amount    uint64          `json:"amount"`
	Balance   uint64          `json:"balance"`
	Signer    string          `json:"signer"`
}

// AuthorityProof is an opaque signed token asserting who authorized a
// ledger call. The ledger verifies it before moving units.
type AuthorityProof string
