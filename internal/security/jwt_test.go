package security

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnreward/rewardplane/internal/domain"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService("test-signing-key", "rewardplane-test")
	require.NoError(t, err)
	return s
}

func TestNewService_EmptyKey(t *testing.T) {
	_, err := NewService("", "x")
	assert.Error(t, err)
}

func TestBearerToken_RoundTrip(t *testing.T) {
	s := newTestService(t)

	tok, err := s.IssueToken("alice", time.Hour)
	require.NoError(t, err)

	principal, err := s.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", principal)
}

func TestBearerToken_Expired(t *testing.T) {
	s := newTestService(t)
	issued := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return issued }

	tok, err := s.IssueToken("alice", time.Minute)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = s.ValidateToken(tok)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized), "err = %v", err)
}

func TestBearerToken_WrongKey(t *testing.T) {
	s := newTestService(t)
	other, err := NewService("another-key", "rewardplane-test")
	require.NoError(t, err)

	tok, err := other.IssueToken("mallory", time.Hour)
	require.NoError(t, err)

	_, err = s.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestProof_NotUsableAsBearer(t *testing.T) {
	s := newTestService(t)

	proof, err := s.SignProof("control-plane", "mint")
	require.NoError(t, err)

	_, err = s.ValidateToken(string(proof))
	assert.ErrorIs(t, err, ErrInvalidToken, "ledger proof must not authenticate API calls")

	bearer, err := s.IssueToken("alice", time.Hour)
	require.NoError(t, err)
	_, _, err = s.VerifyProof(domain.AuthorityProof(bearer))
	assert.ErrorIs(t, err, ErrInvalidToken, "bearer token must not authorize ledger calls")
}

func TestProof_RoundTrip(t *testing.T) {
	s := newTestService(t)

	proof, err := s.SignProof("control-plane", "mint")
	require.NoError(t, err)

	principal, action, err := s.VerifyProof(proof)
	require.NoError(t, err)
	assert.Equal(t, "control-plane", principal)
	assert.Equal(t, "mint", action)
}

func TestIssueToken_EmptyPrincipal(t *testing.T) {
	s := newTestService(t)
	_, err := s.IssueToken("", time.Hour)
	assert.ErrorIs(t, err, domain.ErrInvalidPrincipal)
}
