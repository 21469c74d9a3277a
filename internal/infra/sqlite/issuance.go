package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/learnreward/rewardplane/internal/domain"
)

// ─── Issuer Operations ──────────────────────────────────────────────────────

const issuerColumns = `issuer_id, principal, authority, mint_cap, total_issued, course_count, is_active, last_issuance_at, created_at, last_updated_at`

func scanIssuer(row rowScanner) (*domain.IssuerEntry, error) {
	var (
		e              domain.IssuerEntry
		mintCap, total int64
		active         int
	)
	if err := row.Scan(&e.IssuerID, &e.Principal, &e.Authority, &mintCap, &total,
		&e.CourseCount, &active, &e.LastIssuanceAt, &e.CreatedAt, &e.LastUpdatedAt); err != nil {
		return nil, err
	}
	e.MintCap = u64(mintCap)
	e.TotalIssued = u64(total)
	e.Active = active == 1
	return &e, nil
}

// GetIssuer loads an issuer entry.
func (t *Tx) GetIssuer(ctx context.Context, issuerID string) (*domain.IssuerEntry, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+issuerColumns+` FROM issuers WHERE issuer_id = ?`, issuerID)
	e, err := scanIssuer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrIssuerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get issuer: %w", err)
	}
	return e, nil
}

// InsertIssuer registers a new issuer.
func (t *Tx) InsertIssuer(ctx context.Context, e *domain.IssuerEntry) error {
	return t.insertOnce(ctx, domain.ErrAlreadyRegistered, `
		INSERT INTO issuers (address, `+issuerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, e.Address(), e.IssuerID, e.Principal, e.Authority, i64(e.MintCap), i64(e.TotalIssued),
		e.CourseCount, boolInt(e.Active), e.LastIssuanceAt, e.CreatedAt, e.LastUpdatedAt)
}

// UpdateIssuer persists the mutable issuer fields.
func (t *Tx) UpdateIssuer(ctx context.Context, e *domain.IssuerEntry) error {
	return t.updateOne(ctx, domain.ErrIssuerNotFound, `
		UPDATE issuers SET
			principal        = ?,
			mint_cap         = ?,
			total_issued     = ?,
			course_count     = ?,
			is_active        = ?,
			last_issuance_at = ?,
			last_updated_at  = ?
		WHERE issuer_id = ?
	`, e.Principal, i64(e.MintCap), i64(e.TotalIssued), e.CourseCount, boolInt(e.Active),
		e.LastIssuanceAt, e.LastUpdatedAt, e.IssuerID)
}

// ListIssuers returns all issuers ordered by id.
func (t *Tx) ListIssuers(ctx context.Context) ([]domain.IssuerEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+issuerColumns+` FROM issuers ORDER BY issuer_id`)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	var out []domain.IssuerEntry
	for rows.Next() {
		e, err := scanIssuer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issuer: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ─── Course Operations ──────────────────────────────────────────────────────

const courseColumns = `issuer_id, course_id, name, reward_amount, completion_count, is_active, metadata_hash, version, created_at, last_updated_at`

func scanCourse(row rowScanner) (*domain.Course, error) {
	var (
		c                   domain.Course
		reward, completions int64
		active              int
	)
	if err := row.Scan(&c.IssuerID, &c.CourseID, &c.Name, &reward, &completions,
		&active, &c.MetadataHash, &c.Version, &c.CreatedAt, &c.LastUpdatedAt); err != nil {
		return nil, err
	}
	c.RewardAmount = u64(reward)
	c.CompletionCount = u64(completions)
	c.Active = active == 1
	return &c, nil
}

// GetCourse loads one of an issuer's courses.
func (t *Tx) GetCourse(ctx context.Context, issuerID, courseID string) (*domain.Course, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+courseColumns+` FROM courses WHERE issuer_id = ? AND course_id = ?
	`, issuerID, courseID)
	c, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

// InsertCourse creates a course.
func (t *Tx) InsertCourse(ctx context.Context, c *domain.Course) error {
	return t.insertOnce(ctx, domain.ErrAlreadyInitialized, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, c.IssuerID, c.CourseID, c.Name, i64(c.RewardAmount), i64(c.CompletionCount),
		boolInt(c.Active), c.MetadataHash, c.Version, c.CreatedAt, c.LastUpdatedAt)
}

// UpdateCourse persists the mutable course fields.
func (t *Tx) UpdateCourse(ctx context.Context, c *domain.Course) error {
	return t.updateOne(ctx, domain.ErrCourseNotFound, `
		UPDATE courses SET
			name             = ?,
			reward_amount    = ?,
			completion_count = ?,
			is_active        = ?,
			metadata_hash    = ?,
			version          = ?,
			last_updated_at  = ?
		WHERE issuer_id = ? AND course_id = ?
	`, c.Name, i64(c.RewardAmount), i64(c.CompletionCount), boolInt(c.Active), c.MetadataHash,
		c.Version, c.LastUpdatedAt, c.IssuerID, c.CourseID)
}

// ListCourses returns an issuer's courses ordered by id.
func (t *Tx) ListCourses(ctx context.Context, issuerID string) ([]domain.Course, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+courseColumns+` FROM courses WHERE issuer_id = ? ORDER BY course_id
	`, issuerID)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var out []domain.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// InsertCourseHistory appends a history row.
func (t *Tx) InsertCourseHistory(ctx context.Context, h *domain.CourseHistory) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO course_history (issuer_id, course_id, version, name, reward_amount, is_active, metadata_hash, changed_by, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.IssuerID, h.CourseID, h.Version, h.Name, i64(h.RewardAmount), boolInt(h.Active),
		h.MetadataHash, h.ChangedBy, h.ChangedAt)
	if err != nil {
		return fmt.Errorf("insert course history: %w", err)
	}
	return nil
}

// ListCourseHistory returns a course's history oldest first.
func (t *Tx) ListCourseHistory(ctx context.Context, issuerID, courseID string) ([]domain.CourseHistory, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT issuer_id, course_id, version, name, reward_amount, is_active, metadata_hash, changed_by, changed_at
		FROM course_history WHERE issuer_id = ? AND course_id = ? ORDER BY id
	`, issuerID, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course history: %w", err)
	}
	defer rows.Close()

	var out []domain.CourseHistory
	for rows.Next() {
		var (
			h      domain.CourseHistory
			reward int64
			active int
		)
		if err := rows.Scan(&h.IssuerID, &h.CourseID, &h.Version, &h.Name, &reward, &active,
			&h.MetadataHash, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan course history: %w", err)
		}
		h.RewardAmount = u64(reward)
		h.Active = active == 1
		out = append(out, h)
	}
	return out, rows.Err()
}

// ─── Recipient Operations ───────────────────────────────────────────────────

// GetRecipient loads a recipient account.
func (t *Tx) GetRecipient(ctx context.Context, recipient string) (*domain.RecipientAccount, error) {
	var (
		r      domain.RecipientAccount
		earned int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT recipient, total_earned, courses_completed, last_activity, created_at
		FROM recipients WHERE recipient = ?
	`, recipient).Scan(&r.Recipient, &earned, &r.CoursesCompleted, &r.LastActivity, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	r.TotalEarned = u64(earned)
	return &r, nil
}

// InsertRecipient creates a recipient account.
func (t *Tx) InsertRecipient(ctx context.Context, r *domain.RecipientAccount) error {
	return t.insertOnce(ctx, domain.ErrAlreadyRegistered, `
		INSERT INTO recipients (recipient, total_earned, courses_completed, last_activity, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, r.Recipient, i64(r.TotalEarned), r.CoursesCompleted, r.LastActivity, r.CreatedAt)
}

// UpdateRecipient persists the recipient's totals.
func (t *Tx) UpdateRecipient(ctx context.Context, r *domain.RecipientAccount) error {
	return t.updateOne(ctx, domain.ErrRecipientNotFound, `
		UPDATE recipients SET total_earned = ?, courses_completed = ?, last_activity = ?
		WHERE recipient = ?
	`, i64(r.TotalEarned), r.CoursesCompleted, r.LastActivity, r.Recipient)
}

// ─── Completion Operations ──────────────────────────────────────────────────

// GetCompletion loads the completion record for a recipient and course. It
// returns ErrCourseNotFound when the recipient has not completed the course.
func (t *Tx) GetCompletion(ctx context.Context, recipient, courseID string) (*domain.CompletionRecord, error) {
	var (
		c      domain.CompletionRecord
		amount int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT recipient, course_id, issuer_id, amount, issued_at
		FROM completions WHERE address = ?
	`, domain.CompletionAddress(recipient, courseID)).Scan(&c.Recipient, &c.CourseID, &c.IssuerID, &amount, &c.IssuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	c.Amount = u64(amount)
	return &c, nil
}

// InsertCompletion records a completion. The address is the primary key,
// so a second completion of the same course by the same recipient fails.
func (t *Tx) InsertCompletion(ctx context.Context, c *domain.CompletionRecord) error {
	return t.insertOnce(ctx, domain.ErrCourseAlreadyCompleted, `
		INSERT INTO completions (address, recipient, course_id, issuer_id, amount, issued_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, c.Address(), c.Recipient, c.CourseID, c.IssuerID, i64(c.Amount), c.IssuedAt)
}
