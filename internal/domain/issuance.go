package domain

import "unicode/utf8"

// ─── Issuer Directory ───────────────────────────────────────────────────────

// IssuerEntry authorizes one principal to mint up to MintCap per issuance.
type IssuerEntry struct {
	IssuerID       string `json:"issuer_id"`
	Principal      string `json:"controlling_principal"`
	Authority      string `json:"authority"`
	MintCap        uint64 `json:"mint_cap"`
	TotalIssued    uint64 `json:"total_issued"`
	CourseCount    uint32 `json:"course_count"`
	Active         bool   `json:"is_active"`
	LastIssuanceAt int64  `json:"last_issuance_at"` // 0 = never
	CreatedAt      int64  `json:"created_at"`
	LastUpdatedAt  int64  `json:"last_updated_at"`
}

// Address is the issuer's deterministic address.
func (e *IssuerEntry) Address() string {
	return DeriveAddress("issuer", e.IssuerID)
}

// CooldownElapsed reports whether a new issuance is allowed at now. The
// first issuance is always allowed.
func (e *IssuerEntry) CooldownElapsed(now, cooldown int64) bool {
	return e.LastIssuanceAt == 0 || now-e.LastIssuanceAt >= cooldown
}

// ─── Course Catalog ─────────────────────────────────────────────────────────

// Course is a completable unit published by an issuer.
type Course struct {
	IssuerID        string `json:"issuer_id"`
	CourseID        string `json:"course_id"`
	Name            string `json:"name"`
	RewardAmount    uint64 `json:"reward_amount"`
	CompletionCount uint64 `json:"completion_count"`
	Active          bool   `json:"is_active"`
	MetadataHash    string `json:"metadata_hash,omitempty"`
	Version         uint32 `json:"version"`
	CreatedAt       int64  `json:"created_at"`
	LastUpdatedAt   int64  `json:"last_updated_at"`
}

// CourseHistory records the values a course had before an update.
type CourseHistory struct {
	IssuerID     string `json:"issuer_id"`
	CourseID     string `json:"course_id"`
	Version      uint32 `json:"version"`
	Name         string `json:"name"`
	RewardAmount uint64 `json:"reward_amount"`
	Active       bool   `json:"is_active"`
	MetadataHash string `json:"metadata_hash,omitempty"`
	ChangedBy    string `json:"changed_by"`
	ChangedAt    int64  `json:"changed_at"`
}

// ValidateCourseID checks the 1..MaxCourseIDLength byte bound.
func ValidateCourseID(id string) error {
	if id == "" || len(id) > MaxCourseIDLength || !utf8.ValidString(id) {
		return ErrCourseIdTooLong
	}
	return nil
}

// ValidateCourseName checks the 1..MaxCourseNameLength byte bound.
func ValidateCourseName(name string) error {
	if name == "" || len(name) > MaxCourseNameLength {
		return ErrCourseNameTooLong
	}
	return nil
}

// CourseUpdate carries optional course changes.
type CourseUpdate struct {
	Name         *string `json:"name,omitempty"`
	RewardAmount *uint64 `json:"reward_amount,omitempty"`
	Active       *bool   `json:"is_active,omitempty"`
	MetadataHash *string `json:"metadata_hash,omitempty"`
}

// ─── Recipients & Completions ───────────────────────────────────────────────

// RecipientAccount aggregates what a recipient has earned.
type RecipientAccount struct {
	Recipient        string `json:"recipient"`
	TotalEarned      uint64 `json:"total_earned"`
	CoursesCompleted uint32 `json:"courses_completed"`
	LastActivity     int64  `json:"last_activity"`
	CreatedAt        int64  `json:"created_at"`
}

// CompletionRecord proves a (recipient, course) pair was rewarded once.
type CompletionRecord struct {
	Recipient string `json:"recipient"`
	CourseID  string `json:"course_id"`
	IssuerID  string `json:"issuer_id"`
	Amount    uint64 `json:"amount"`
	IssuedAt  int64  `json:"issued_at"`
}

// Address is the record's deterministic address and storage key.
func (c *CompletionRecord) Address() string {
	return CompletionAddress(c.Recipient, c.CourseID)
}

// CompletionAddress derives the completion key for a recipient and course.
func CompletionAddress(recipient, courseID string) string {
	return DeriveAddress("completion", recipient, courseID)
}
