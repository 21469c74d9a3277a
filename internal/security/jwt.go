// Package security issues and validates the signed tokens used by the
// control plane: bearer tokens that identify API callers, and short-lived
// authority proofs presented to the asset ledger.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/learnreward/rewardplane/internal/domain"
)

const (
	audienceAPI    = "rewardplane-api"
	audienceLedger = "rewardplane-ledger"

	// DefaultProofTTL bounds how long an authority proof stays valid.
	DefaultProofTTL = time.Minute
)

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)

// Claims are the claims carried by both token kinds. Action is only set on
// authority proofs.
type Claims struct {
	Action string `json:"act,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and validates HS256 tokens with one shared key.
type Service struct {
	signingKey []byte
	issuer     string
	proofTTL   time.Duration
	now        func() time.Time
}

var (
	_ domain.ProofSigner   = (*Service)(nil)
	_ domain.ProofVerifier = (*Service)(nil)
)

// NewService creates a token service. The key must be non-empty.
func NewService(signingKey, issuer string) (*Service, error) {
	if signingKey == "" {
		return nil, errors.New("security: signing key is required")
	}
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		proofTTL:   DefaultProofTTL,
		now:        time.Now,
	}, nil
}

// ─── Bearer Tokens ──────────────────────────────────────────────────────────

// IssueToken returns a bearer token identifying principal.
func (s *Service) IssueToken(principal string, ttl time.Duration) (string, error) {
	if principal == "" {
		return "", domain.ErrInvalidPrincipal
	}
	return s.sign(principal, audienceAPI, "", ttl)
}

// ValidateToken returns the principal a bearer token was issued for.
func (s *Service) ValidateToken(token string) (string, error) {
	claims, err := s.parse(token, audienceAPI)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ─── Authority Proofs ───────────────────────────────────────────────────────

// SignProof returns a proof that principal authorized action.
func (s *Service) SignProof(principal, action string) (domain.AuthorityProof, error) {
	if principal == "" {
		return "", domain.ErrInvalidPrincipal
	}
	tok, err := s.sign(principal, audienceLedger, action, s.proofTTL)
	if err != nil {
		return "", err
	}
	return domain.AuthorityProof(tok), nil
}

// VerifyProof checks a proof and returns its principal and action.
func (s *Service) VerifyProof(proof domain.AuthorityProof) (string, string, error) {
	claims, err := s.parse(string(proof), audienceLedger)
	if err != nil {
		return "", "", err
	}
	if claims.Action == "" {
		return "", "", fmt.Errorf("%w: proof has no action", ErrInvalidToken)
	}
	return claims.Subject, claims.Action, nil
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (s *Service) sign(subject, audience, action string, ttl time.Duration) (string, error) {
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  []string{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := tok.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(token, audience string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithAudience(audience),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
