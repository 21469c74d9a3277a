package sqlite

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the state schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Program singleton: authority, supply counters and the capability gate
		`CREATE TABLE IF NOT EXISTS program_state (
			address      TEXT PRIMARY KEY,
			authority    TEXT NOT NULL,
			mint_id      TEXT NOT NULL,
			total_minted INTEGER NOT NULL DEFAULT 0,
			total_burned INTEGER NOT NULL DEFAULT 0,
			issuer_count INTEGER NOT NULL DEFAULT 0,
			paused       INTEGER NOT NULL DEFAULT 0,
			pause_flags  INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS program_config (
			address                TEXT PRIMARY KEY,
			max_issuers            INTEGER NOT NULL,
			max_courses_per_issuer INTEGER NOT NULL,
			max_mint_amount        INTEGER NOT NULL,
			mint_cooldown          INTEGER NOT NULL,
			proposal_expiration    INTEGER NOT NULL,
			last_updated_at        INTEGER NOT NULL
		)`,

		// Trustee registries (standard, emergency)
		`CREATE TABLE IF NOT EXISTS registries (
			kind           TEXT PRIMARY KEY,
			address        TEXT NOT NULL UNIQUE,
			signers        TEXT NOT NULL,
			threshold      INTEGER NOT NULL,
			proposal_count INTEGER NOT NULL DEFAULT 0,
			authority      TEXT NOT NULL,
			created_at     INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS proposals (
			address     TEXT PRIMARY KEY,
			registry    TEXT NOT NULL REFERENCES registries(kind),
			idx         INTEGER NOT NULL,
			effect      TEXT NOT NULL,
			approvals   TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'ACTIVE',
			proposer    TEXT NOT NULL,
			executor    TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL,
			closed_at   INTEGER,
			UNIQUE(registry, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(registry, status)`,

		// Issuer directory
		`CREATE TABLE IF NOT EXISTS issuers (
			issuer_id        TEXT PRIMARY KEY,
			address          TEXT NOT NULL UNIQUE,
			principal        TEXT NOT NULL,
			authority        TEXT NOT NULL,
			mint_cap         INTEGER NOT NULL,
			total_issued     INTEGER NOT NULL DEFAULT 0,
			course_count     INTEGER NOT NULL DEFAULT 0,
			is_active        INTEGER NOT NULL DEFAULT 1,
			last_issuance_at INTEGER NOT NULL DEFAULT 0,
			created_at       INTEGER NOT NULL,
			last_updated_at  INTEGER NOT NULL
		)`,

		// Course catalog and its change history
		`CREATE TABLE IF NOT EXISTS courses (
			issuer_id        TEXT NOT NULL REFERENCES issuers(issuer_id),
			course_id        TEXT NOT NULL,
			name             TEXT NOT NULL,
			reward_amount    INTEGER NOT NULL,
			completion_count INTEGER NOT NULL DEFAULT 0,
			is_active        INTEGER NOT NULL DEFAULT 1,
			metadata_hash    TEXT NOT NULL DEFAULT '',
			version          INTEGER NOT NULL DEFAULT 1,
			created_at       INTEGER NOT NULL,
			last_updated_at  INTEGER NOT NULL,
			PRIMARY KEY (issuer_id, course_id)
		)`,
		`CREATE TABLE IF NOT EXISTS course_history (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			issuer_id     TEXT NOT NULL,
			course_id     TEXT NOT NULL,
			version       INTEGER NOT NULL,
			name          TEXT NOT NULL,
			reward_amount INTEGER NOT NULL,
			is_active     INTEGER NOT NULL,
			metadata_hash TEXT NOT NULL DEFAULT '',
			changed_by    TEXT NOT NULL,
			changed_at    INTEGER NOT NULL,
			FOREIGN KEY (issuer_id, course_id) REFERENCES courses(issuer_id, course_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_course_history ON course_history(issuer_id, course_id, version)`,

		// Recipients and the one-completion-per-course record
		`CREATE TABLE IF NOT EXISTS recipients (
			recipient         TEXT PRIMARY KEY,
			total_earned      INTEGER NOT NULL DEFAULT 0,
			courses_completed INTEGER NOT NULL DEFAULT 0,
			last_activity     INTEGER NOT NULL DEFAULT 0,
			created_at        INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS completions (
			address   TEXT PRIMARY KEY,
			recipient TEXT NOT NULL,
			course_id TEXT NOT NULL,
			issuer_id TEXT NOT NULL,
			amount    INTEGER NOT NULL,
			issued_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_recipient ON completions(recipient)`,
	}
}
