package issuance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/learnreward/rewardplane/internal/app/program"
	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/ledger"
	"github.com/learnreward/rewardplane/internal/infra/ledger/mock"
	"github.com/learnreward/rewardplane/internal/infra/sqlite"
	"github.com/learnreward/rewardplane/internal/security"
)

const (
	authority = "root"
	identity  = "control-plane"
	mintID    = "LRN"
	educator  = "edu-key"
)

func fixedTime(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

type fixture struct {
	svc *Service
	db  *sqlite.DB
	sec *security.Service
}

// newFixture initializes a program on a fresh database. A nil assets
// selects a real local ledger.
func newFixture(t *testing.T, assets domain.AssetService) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sec, err := security.NewService("issuance-test-key", "rewardplane-test")
	require.NoError(t, err)

	if assets == nil {
		l, err := ledger.Open(t.TempDir(), sec, identity, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { l.Close() })
		assets = l
	}

	_, err = program.New(db, nil, zerolog.Nop()).Initialize(ctx, authority, mintID, nil)
	require.NoError(t, err)

	svc := New(db, assets, sec, identity, nil, zerolog.Nop())
	svc.now = fixedTime(10_000)
	return &fixture{svc: svc, db: db, sec: sec}
}

// withCourse registers issuer "edu" with the given cap and publishes course
// "c1" with the given reward.
func (f *fixture) withCourse(t *testing.T, mintCap, reward uint64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.RegisterIssuer(ctx, authority, "edu", educator, mintCap)
	require.NoError(t, err)
	_, err = f.svc.CreateCourse(ctx, educator, "edu", CourseInput{CourseID: "c1", Name: "Intro", RewardAmount: reward})
	require.NoError(t, err)
}

func (f *fixture) program(t *testing.T) *domain.ProgramState {
	t.Helper()
	var p *domain.ProgramState
	require.NoError(t, f.db.RunInTx(context.Background(), func(tx domain.Tx) error {
		var err error
		p, err = tx.GetProgram(context.Background())
		return err
	}))
	return p
}

// ─── Directory ──────────────────────────────────────────────────────────────

func TestRegisterIssuer(t *testing.T) {
	f := newFixture(t, mock.NewAssetService(t))
	ctx := context.Background()

	_, err := f.svc.RegisterIssuer(ctx, "mallory", "edu", educator, 100)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.RegisterIssuer(ctx, authority, "edu", educator, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.RegisterIssuer(ctx, authority, "edu", educator, domain.DefaultMaxMintAmount+1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	e, err := f.svc.RegisterIssuer(ctx, authority, "edu", educator, 100)
	require.NoError(t, err)
	assert.True(t, e.Active)
	assert.Equal(t, authority, e.Authority)
	assert.Equal(t, int64(10_000), e.CreatedAt)

	_, err = f.svc.RegisterIssuer(ctx, authority, "edu", "someone-else", 100)
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	assert.Equal(t, uint32(1), f.program(t).IssuerCount)
}

func TestRegisterIssuer_MaxIssuers(t *testing.T) {
	f := newFixture(t, mock.NewAssetService(t))
	ctx := context.Background()

	one := uint32(1)
	_, err := program.New(f.db, nil, zerolog.Nop()).UpdateConfig(ctx, authority, domain.ConfigUpdate{MaxIssuers: &one})
	require.NoError(t, err)

	_, err = f.svc.RegisterIssuer(ctx, authority, "a", "pa", 10)
	require.NoError(t, err)
	_, err = f.svc.RegisterIssuer(ctx, authority, "b", "pb", 10)
	assert.ErrorIs(t, err, domain.ErrMaxIssuersReached)
}

func TestRegisterIssuer_Paused(t *testing.T) {
	f := newFixture(t, mock.NewAssetService(t))
	ctx := context.Background()

	require.NoError(t, f.db.RunInTx(ctx, func(tx domain.Tx) error {
		p, err := tx.GetProgram(ctx)
		if err != nil {
			return err
		}
		p.PauseFlags = domain.PauseRegister
		return tx.UpdateProgram(ctx, p)
	}))

	_, err := f.svc.RegisterIssuer(ctx, authority, "edu", educator, 100)
	assert.ErrorIs(t, err, domain.ErrFunctionPaused)
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t, mock.NewAssetService(t))
	ctx := context.Background()
	_, err := f.svc.RegisterIssuer(ctx, authority, "edu", educator, 100)
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, educator, "edu", false, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	zero := uint64(0)
	_, err = f.svc.SetStatus(ctx, authority, "edu", true, &zero)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	f.svc.now = fixedTime(12_000)
	newCap := uint64(500)
	e, err := f.svc.SetStatus(ctx, authority, "edu", false, &newCap)
	require.NoError(t, err)
	assert.False(t, e.Active)
	assert.Equal(t, uint64(500), e.MintCap)
	assert.Equal(t, int64(12_000), e.LastUpdatedAt)

	_, err = f.svc.SetStatus(ctx, authority, "missing", false, nil)
	assert.ErrorIs(t, err, domain.ErrIssuerNotFound)
}

// ─── Courses ────────────────────────────────────────────────────────────────

func TestCreateCourse(t *testing.T) {
	f := newFixture(t, mock.NewAssetService(t))
	ctx := context.Background()
	_, err := f.svc.RegisterIssuer(ctx, authority, "edu", educator, 100)
	require.NoError(t, err)

	tests := []struct {
		name    string
		caller  string
		in      CourseInput
		wantErr error
	}{
		{"wrong caller", authority, CourseInput{CourseID: "c1", Name: "Intro", RewardAmount: 10}, domain.ErrUnauthorized},
		{"empty id", educator, CourseInput{Name: "Intro", RewardAmount: 10}, domain.ErrCourseIdTooLong},
		{"long id", educator, CourseInput{CourseID: string(make([]byte, 51)), Name: "Intro", RewardAmount: 10}, domain.ErrCourseIdTooLong},
		{"empty name", educator, CourseInput{CourseID: "c1", RewardAmount: 10}, domain.ErrCourseNameTooLong},
		{"zero reward", educator, CourseInput{CourseID: "c1", Name: "Intro"}, domain.ErrInvalidCourseReward},
		{"reward above cap", educator, CourseInput{CourseID: "c1", Name: "Intro", RewardAmount: 101}, domain.ErrInvalidCourseReward},
		{"bad hash", educator, CourseInput{CourseID: "c1", Name: "Intro", RewardAmount: 10, MetadataHash: "xyz"}, domain.ErrInvalidMetadataHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateCourse(ctx, tt.caller, "edu", tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	c, err := f.svc.CreateCourse(ctx, educator, "edu", CourseInput{
		CourseID: "c1", Name: "Intro", RewardAmount: 100, Metadata: `{"syllabus":"basics"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), c.Version)
	assert.Equal(t, HashMetadata(`{"syllabus":"basics"}`), c.MetadataHash)

	_, err = f.svc.CreateCourse(ctx, educator, "edu", CourseInput{CourseID: "c1", Name: "Again", RewardAmount: 1})
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)

	e, err := f.svc.GetIssuer(ctx, "edu")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), e.CourseCount)
}

func TestCreateCourse_InactiveIssuer(t *testing.T) {
	f := newFixture(t, mock.NewAssetService(t))
	ctx := context.Background()
	_, err := f.svc.RegisterIssuer(ctx, authority, "edu", educator, 100)
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, authority, "edu", false, nil)
	require.NoError(t, err)

	_, err = f.svc.CreateCourse(ctx, educator, "edu", CourseInput{CourseID: "c1", Name: "Intro", RewardAmount: 10})
	assert.ErrorIs(t, err, domain.ErrInactiveEducator)
}

func TestCreateCourse_MaxCourses(t *testing.T) {
	f := newFixture(t, mock.NewAssetService(t))
	ctx := context.Background()
	two := uint32(2)
	_, err := program.New(f.db, nil, zerolog.Nop()).UpdateConfig(ctx, authority, domain.ConfigUpdate{MaxCoursesPerIssuer: &two})
	require.NoError(t, err)
	_, err = f.svc.RegisterIssuer(ctx, authority, "edu", educator, 100)
	require.NoError(t, err)

	for _, id := range []string{"c1", "c2"} {
		_, err := f.svc.CreateCourse(ctx, educator, "edu", CourseInput{CourseID: id, Name: id, RewardAmount: 10})
		require.NoError(t, err)
	}
	_, err = f.svc.CreateCourse(ctx, educator, "edu", CourseInput{CourseID: "c3", Name: "c3", RewardAmount: 10})
	assert.ErrorIs(t, err, domain.ErrMaxCoursesReached)
}

func TestUpdateCourse_History(t *testing.T) {
	f := newFixture(t, mock.NewAssetService(t))
	ctx := context.Background()
	f.withCourse(t, 100, 40)

	f.svc.now = fixedTime(11_000)
	name := "Intro v2"
	reward := uint64(60)
	c, err := f.svc.UpdateCourse(ctx, educator, "edu", "c1", domain.CourseUpdate{Name: &name, RewardAmount: &reward})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), c.Version)
	assert.Equal(t, "Intro v2", c.Name)
	assert.Equal(t, int64(11_000), c.LastUpdatedAt)

	tooMuch := uint64(101)
	_, err = f.svc.UpdateCourse(ctx, educator, "edu", "c1", domain.CourseUpdate{RewardAmount: &tooMuch})
	assert.ErrorIs(t, err, domain.ErrInvalidCourseReward)

	_, err = f.svc.UpdateCourse(ctx, educator, "edu", "nope", domain.CourseUpdate{Name: &name})
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)

	hist, err := f.svc.CourseHistory(ctx, "edu", "c1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "Intro", hist[0].Name)
	assert.Equal(t, uint64(40), hist[0].RewardAmount)
	assert.Equal(t, uint32(1), hist[0].Version)
	assert.Equal(t, educator, hist[0].ChangedBy)
}

// ─── Issuance ───────────────────────────────────────────────────────────────

func TestIssue_CapBoundaries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.withCourse(t, 100, 100)
	_, err := f.svc.CreateCourse(ctx, educator, "edu", CourseInput{CourseID: "c2", Name: "Next", RewardAmount: 50})
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 150})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 50})
	require.NoError(t, err)

	f.svc.now = fixedTime(10_000 + domain.DefaultMintCooldown)
	_, err = f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c2", Amount: 50})
	require.NoError(t, err)

	bal, err := f.svc.assets.BalanceOf(ctx, mintID, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)

	r, err := f.svc.GetRecipient(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), r.TotalEarned)
	assert.Equal(t, uint32(2), r.CoursesCompleted)
	assert.Equal(t, uint64(100), f.program(t).TotalMinted)

	e, err := f.svc.GetIssuer(ctx, "edu")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), e.TotalIssued)
}

func TestIssue_Cooldown(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.withCourse(t, 100, 10)
	_, err := f.svc.CreateCourse(ctx, educator, "edu", CourseInput{CourseID: "c2", Name: "Next", RewardAmount: 10})
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 10})
	require.NoError(t, err)

	f.svc.now = fixedTime(10_000 + domain.DefaultMintCooldown - 1)
	_, err = f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "bob", CourseID: "c2", Amount: 10})
	assert.ErrorIs(t, err, domain.ErrMintingTooFrequent)

	f.svc.now = fixedTime(10_000 + domain.DefaultMintCooldown)
	_, err = f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "bob", CourseID: "c2", Amount: 10})
	assert.NoError(t, err)
}

func TestIssue_CompletionIsOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.withCourse(t, 100, 10)

	rec, err := f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, domain.CompletionAddress("alice", "c1"), rec.Address())

	f.svc.now = fixedTime(10_000 + domain.DefaultMintCooldown)
	_, err = f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 10})
	assert.ErrorIs(t, err, domain.ErrCourseAlreadyCompleted)

	bal, err := f.svc.assets.BalanceOf(ctx, mintID, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bal)
	assert.Equal(t, uint64(10), f.program(t).TotalMinted)

	c, err := f.svc.GetCourse(ctx, "edu", "c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.CompletionCount)
}

func TestIssue_Preconditions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.withCourse(t, 100, 10)
	inactive := false
	_, err := f.svc.CreateCourse(ctx, educator, "edu", CourseInput{CourseID: "c2", Name: "Old", RewardAmount: 10})
	require.NoError(t, err)
	_, err = f.svc.UpdateCourse(ctx, educator, "edu", "c2", domain.CourseUpdate{Active: &inactive})
	require.NoError(t, err)

	tests := []struct {
		name    string
		caller  string
		req     IssueRequest
		wantErr error
	}{
		{"unknown issuer", educator, IssueRequest{IssuerID: "x", Recipient: "alice", CourseID: "c1", Amount: 1}, domain.ErrIssuerNotFound},
		{"wrong principal", "mallory", IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 1}, domain.ErrUnauthorized},
		{"zero amount", educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1"}, domain.ErrInvalidAmount},
		{"unknown course", educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "zz", Amount: 1}, domain.ErrCourseNotFound},
		{"inactive course", educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c2", Amount: 1}, domain.ErrCourseInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Issue(ctx, tt.caller, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = f.svc.SetStatus(ctx, authority, "edu", false, nil)
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 1})
	assert.ErrorIs(t, err, domain.ErrInactiveEducator)
}

func TestIssue_MintPaused(t *testing.T) {
	f := newFixture(t, mock.NewAssetService(t))
	ctx := context.Background()
	f.withCourse(t, 100, 10)

	require.NoError(t, f.db.RunInTx(ctx, func(tx domain.Tx) error {
		p, err := tx.GetProgram(ctx)
		if err != nil {
			return err
		}
		p.PauseFlags = domain.PauseMint
		return tx.UpdateProgram(ctx, p)
	}))

	_, err := f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 10})
	assert.ErrorIs(t, err, domain.ErrFunctionPaused)
}

func TestIssue_Overflow(t *testing.T) {
	assets := mock.NewAssetService(t)
	f := newFixture(t, assets)
	ctx := context.Background()
	f.withCourse(t, 100, 10)

	require.NoError(t, f.db.RunInTx(ctx, func(tx domain.Tx) error {
		p, err := tx.GetProgram(ctx)
		if err != nil {
			return err
		}
		p.TotalMinted = math.MaxUint64 - 1
		return tx.UpdateProgram(ctx, p)
	}))

	_, err := f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 5})
	assert.ErrorIs(t, err, domain.ErrOverflow)

	assert.Equal(t, uint64(math.MaxUint64-1), f.program(t).TotalMinted)
	_, err = f.svc.GetCompletion(ctx, "alice", "c1")
	assert.Error(t, err)
	assets.AssertNotCalled(t, "Mint", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
}

func TestIssue_IssuerTotalOverflow(t *testing.T) {
	assets := mock.NewAssetService(t)
	f := newFixture(t, assets)
	ctx := context.Background()
	f.withCourse(t, 100, 10)

	require.NoError(t, f.db.RunInTx(ctx, func(tx domain.Tx) error {
		e, err := tx.GetIssuer(ctx, "edu")
		if err != nil {
			return err
		}
		e.TotalIssued = math.MaxUint64 - 1
		return tx.UpdateIssuer(ctx, e)
	}))

	_, err := f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 5})
	assert.ErrorIs(t, err, domain.ErrOverflow)

	e, err := f.svc.GetIssuer(ctx, "edu")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-1), e.TotalIssued)
	assert.Equal(t, int64(0), e.LastIssuanceAt)
	assert.Equal(t, uint64(0), f.program(t).TotalMinted)
	assets.AssertNotCalled(t, "Mint", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
}

func TestIssue_LedgerFailureRollsBack(t *testing.T) {
	assets := mock.NewAssetService(t)
	f := newFixture(t, assets)
	ctx := context.Background()
	f.withCourse(t, 100, 10)

	assets.On("Mint", tmock.Anything, mintID, "alice", uint64(10), tmock.Anything).
		Return(errors.New("ledger unavailable")).Once()

	_, err := f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 10})
	require.Error(t, err)

	assert.Equal(t, uint64(0), f.program(t).TotalMinted)
	_, err = f.svc.GetRecipient(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrRecipientNotFound)
	_, err = f.svc.GetCompletion(ctx, "alice", "c1")
	assert.Error(t, err)
	e, err := f.svc.GetIssuer(ctx, "edu")
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.LastIssuanceAt)

	// The failed attempt must not start the cooldown.
	assets.On("Mint", tmock.Anything, mintID, "alice", uint64(10), tmock.Anything).Return(nil).Once()
	_, err = f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 10})
	assert.NoError(t, err)
}

// commitFailStore runs the unit of work and then discards it, as if the
// commit failed.
type commitFailStore struct {
	domain.Store
}

var errCommit = errors.New("commit failed")

func (s commitFailStore) RunInTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.Store.RunInTx(ctx, func(tx domain.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errCommit
	})
}

func TestIssue_CommitFailureCompensates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.withCourse(t, 100, 10)

	f.svc.store = commitFailStore{f.db}
	_, err := f.svc.Issue(ctx, educator, IssueRequest{IssuerID: "edu", Recipient: "alice", CourseID: "c1", Amount: 10})
	assert.ErrorIs(t, err, errCommit)

	bal, err := f.svc.assets.BalanceOf(ctx, mintID, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bal, "compensating burn should undo the mint")
	assert.Equal(t, uint64(0), f.program(t).TotalMinted)
}

// ─── Recipients ─────────────────────────────────────────────────────────────

func TestRegisterRecipient(t *testing.T) {
	f := newFixture(t, mock.NewAssetService(t))
	ctx := context.Background()

	_, err := f.svc.RegisterRecipient(ctx, "mallory", "alice")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	r, err := f.svc.RegisterRecipient(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), r.CreatedAt)

	_, err = f.svc.RegisterRecipient(ctx, "alice", "alice")
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
}
