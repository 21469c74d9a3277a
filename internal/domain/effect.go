package domain

import (
	"encoding/json"
	"fmt"
)

// ─── Proposal Effects ───────────────────────────────────────────────────────
// Effect is a closed union: only the types declared in this file implement it.

// EffectKind is the discriminator of an Effect.
type EffectKind string

const (
	EffectChangeAuthority    EffectKind = "change_authority"
	EffectTogglePause        EffectKind = "toggle_pause"
	EffectRegisterIssuer     EffectKind = "register_issuer"
	EffectUpdateIssuerStatus EffectKind = "update_issuer_status"
	EffectAddSigner          EffectKind = "add_signer"
	EffectRemoveSigner       EffectKind = "remove_signer"
	EffectChangeThreshold    EffectKind = "change_threshold"
)

// Effect is the action a proposal applies when executed.
type Effect interface {
	Kind() EffectKind
	// Validate checks the parameters that do not depend on stored state.
	Validate() error
	effect()
}

// ChangeAuthority replaces the program authority.
type ChangeAuthority struct {
	NewAuthority string `json:"new_authority"`
}

// TogglePause flips the global pause switch.
type TogglePause struct {
	Paused bool `json:"paused"`
}

// RegisterIssuer adds an issuer to the directory.
type RegisterIssuer struct {
	IssuerID  string `json:"issuer_id"`
	Principal string `json:"principal"`
	MintCap   uint64 `json:"mint_cap"`
}

// UpdateIssuerStatus activates or deactivates an issuer and optionally
// replaces its cap.
type UpdateIssuerStatus struct {
	IssuerID string  `json:"issuer_id"`
	Active   bool    `json:"active"`
	MintCap  *uint64 `json:"mint_cap,omitempty"`
}

// AddSigner appends a member to the proposal's registry.
type AddSigner struct {
	Signer string `json:"signer"`
}

// RemoveSigner drops a member from the proposal's registry.
type RemoveSigner struct {
	Signer string `json:"signer"`
}

// ChangeThreshold sets the proposal registry's approval threshold.
type ChangeThreshold struct {
	Threshold int `json:"threshold"`
}

func (ChangeAuthority) Kind() EffectKind    { return EffectChangeAuthority }
func (TogglePause) Kind() EffectKind        { return EffectTogglePause }
func (RegisterIssuer) Kind() EffectKind     { return EffectRegisterIssuer }
func (UpdateIssuerStatus) Kind() EffectKind { return EffectUpdateIssuerStatus }
func (AddSigner) Kind() EffectKind          { return EffectAddSigner }
func (RemoveSigner) Kind() EffectKind       { return EffectRemoveSigner }
func (ChangeThreshold) Kind() EffectKind    { return EffectChangeThreshold }

func (ChangeAuthority) effect()    {}
func (TogglePause) effect()        {}
func (RegisterIssuer) effect()     {}
func (UpdateIssuerStatus) effect() {}
func (AddSigner) effect()          {}
func (RemoveSigner) effect()       {}
func (ChangeThreshold) effect()    {}

func (e ChangeAuthority) Validate() error {
	if e.NewAuthority == "" {
		return ErrInvalidAuthority
	}
	return nil
}

func (TogglePause) Validate() error { return nil }

func (e RegisterIssuer) Validate() error {
	if e.IssuerID == "" || e.Principal == "" {
		return ErrInvalidPrincipal
	}
	if e.MintCap == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e UpdateIssuerStatus) Validate() error {
	if e.IssuerID == "" {
		return ErrInvalidPrincipal
	}
	if e.MintCap != nil && *e.MintCap == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e AddSigner) Validate() error {
	if e.Signer == "" {
		return ErrInvalidPrincipal
	}
	return nil
}

func (e RemoveSigner) Validate() error {
	if e.Signer == "" {
		return ErrInvalidPrincipal
	}
	return nil
}

func (e ChangeThreshold) Validate() error {
	if e.Threshold <= 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// AllowedIn reports whether an effect may be proposed in a registry of the
// given kind. The emergency registry carries pause toggles only.
func AllowedIn(e Effect, kind RegistryKind) bool {
	switch kind {
	case RegistryStandard:
		return true
	case RegistryEmergency:
		return e.Kind() == EffectTogglePause
	}
	return false
}

// ─── Encoding ───────────────────────────────────────────────────────────────

type effectEnvelope struct {
	Kind   EffectKind      `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// EncodeEffect serializes e as {"kind": ..., "params": {...}}.
func EncodeEffect(e Effect) ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	params, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode effect: %w", err)
	}
	return json.Marshal(effectEnvelope{Kind: e.Kind(), Params: params})
}

// DecodeEffect parses the output of EncodeEffect. Unknown kinds fail with
// ErrInvalidEffect.
func DecodeEffect(data []byte) (Effect, error) {
	var env effectEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEffect, err)
	}
	var (
		e   Effect
		err error
	)
	switch env.Kind {
	case EffectChangeAuthority:
		var v ChangeAuthority
		err = unmarshalParams(env.Params, &v)
		e = v
	case EffectTogglePause:
		var v TogglePause
		err = unmarshalParams(env.Params, &v)
		e = v
	case EffectRegisterIssuer:
		var v RegisterIssuer
		err = unmarshalParams(env.Params, &v)
		e = v
	case EffectUpdateIssuerStatus:
		var v UpdateIssuerStatus
		err = unmarshalParams(env.Params, &v)
		e = v
	case EffectAddSigner:
		var v AddSigner
		err = unmarshalParams(env.Params, &v)
		e = v
	case EffectRemoveSigner:
		var v RemoveSigner
		err = unmarshalParams(env.Params, &v)
		e = v
	case EffectChangeThreshold:
		var v ChangeThreshold
		err = unmarshalParams(env.Params, &v)
		e = v
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEffect, env.Kind)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing params", ErrInvalidEffect)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEffect, err)
	}
	return nil
}
