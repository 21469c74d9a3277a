package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency. Callers match them
// with errors.Is; KindOf groups them into the categories the transport maps
// to status codes.

var (
	// Authorization errors
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidAuthority = errors.New("invalid authority")
	ErrEffectNotAllowed = errors.New("effect not allowed for this registry")

	// Validation errors
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidThreshold      = errors.New("invalid threshold")
	ErrInvalidMultisigConfig = errors.New("invalid multisig configuration")
	ErrMaxSignersReached     = errors.New("maximum number of signers reached")
	ErrDescriptionTooLong    = errors.New("description too long")
	ErrCourseIdTooLong       = errors.New("course id empty or too long")
	ErrCourseNameTooLong     = errors.New("course name empty or too long")
	ErrInvalidCourseReward   = errors.New("invalid course reward")
	ErrInvalidPauseFlags     = errors.New("invalid pause flags")
	ErrInvalidEffect         = errors.New("invalid proposal effect")
	ErrInvalidPrincipal      = errors.New("invalid principal")
	ErrInvalidConfig         = errors.New("invalid program config")
	ErrInvalidMetadataHash   = errors.New("invalid metadata hash")

	// State-conflict errors
	ErrAlreadyApproved        = errors.New("proposal already approved by signer")
	ErrAlreadyRegistered      = errors.New("account already registered")
	ErrAlreadyInitialized     = errors.New("account already initialized")
	ErrCourseAlreadyCompleted = errors.New("course already completed by recipient")
	ErrInvalidProposalStatus  = errors.New("invalid proposal status")
	ErrProposalExpired        = errors.New("proposal expired")
	ErrNotEnoughSigners       = errors.New("not enough signers approved")
	ErrSignerAlreadyExists    = errors.New("signer already exists")
	ErrSignerNotFound         = errors.New("signer not found")
	ErrInactiveEducator       = errors.New("issuer is inactive")
	ErrCourseInactive         = errors.New("course is inactive")
	ErrMaxIssuersReached      = errors.New("maximum number of issuers reached")
	ErrMaxCoursesReached      = errors.New("maximum number of courses per issuer reached")
	ErrInsufficientBalance    = errors.New("insufficient balance")

	// Policy errors
	ErrProgramPaused        = errors.New("program is paused")
	ErrFunctionPaused       = errors.New("function is paused")
	ErrMintingTooFrequent   = errors.New("minting too frequent")
	ErrTransferFrontRunning = errors.New("transfer rejected by front-running buffer")

	// Arithmetic errors
	ErrOverflow = errors.New("arithmetic overflow")

	// Lookup errors
	ErrNotInitialized    = errors.New("program not initialized")
	ErrRegistryNotFound  = errors.New("registry not found")
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrIssuerNotFound    = errors.New("issuer not found")
	ErrCourseNotFound    = errors.New("course not found")
	ErrRecipientNotFound = errors.New("recipient not found")
)

// ─── Error Kinds ────────────────────────────────────────────────────────────

// ErrorKind is the category of a domain error.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindAuthorization
	KindValidation
	KindConflict
	KindPolicy
	KindArithmetic
	KindNotFound
)

// String returns the wire name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindPolicy:
		return "policy"
	case KindArithmetic:
		return "arithmetic"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var errorKinds = map[error]ErrorKind{
	ErrUnauthorized:     KindAuthorization,
	ErrInvalidAuthority: KindAuthorization,
	ErrEffectNotAllowed: KindAuthorization,

	ErrInvalidAmount:         KindValidation,
	ErrInvalidThreshold:      KindValidation,
	ErrInvalidMultisigConfig: KindValidation,
	ErrMaxSignersReached:     KindValidation,
	ErrDescriptionTooLong:    KindValidation,
	ErrCourseIdTooLong:       KindValidation,
	ErrCourseNameTooLong:     KindValidation,
	ErrInvalidCourseReward:   KindValidation,
	ErrInvalidPauseFlags:     KindValidation,
	ErrInvalidEffect:         KindValidation,
	ErrInvalidPrincipal:      KindValidation,
	ErrInvalidConfig:         KindValidation,
	ErrInvalidMetadataHash:   KindValidation,

	ErrAlreadyApproved:        KindConflict,
	ErrAlreadyRegistered:      KindConflict,
	ErrAlreadyInitialized:     KindConflict,
	ErrCourseAlreadyCompleted: KindConflict,
	ErrInvalidProposalStatus:  KindConflict,
	ErrProposalExpired:        KindConflict,
	ErrNotEnoughSigners:       KindConflict,
	ErrSignerAlreadyExists:    KindConflict,
	ErrSignerNotFound:         KindConflict,
	ErrInactiveEducator:       KindConflict,
	ErrCourseInactive:         KindConflict,
	ErrMaxIssuersReached:      KindConflict,
	ErrMaxCoursesReached:      KindConflict,
	ErrInsufficientBalance:    KindConflict,

	ErrProgramPaused:        KindPolicy,
	ErrFunctionPaused:       KindPolicy,
	ErrMintingTooFrequent:   KindPolicy,
	ErrTransferFrontRunning: KindPolicy,

	ErrOverflow: KindArithmetic,

	ErrNotInitialized:    KindNotFound,
	ErrRegistryNotFound:  KindNotFound,
	ErrProposalNotFound:  KindNotFound,
	ErrIssuerNotFound:    KindNotFound,
	ErrCourseNotFound:    KindNotFound,
	ErrRecipientNotFound: KindNotFound,
}

// KindOf returns the category of the first domain sentinel found in err's
// chain, or KindInternal when err carries none.
func KindOf(err error) ErrorKind {
	for err != nil {
		if k, ok := sentinelKind(err); ok {
			return k
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				if k := KindOf(e); k != KindInternal {
					return k
				}
			}
			return KindInternal
		}
		err = errors.Unwrap(err)
	}
	return KindInternal
}

// sentinelKind compares by identity instead of indexing the map, so error
// values of uncomparable types never reach the map hash.
func sentinelKind(err error) (ErrorKind, bool) {
	for sentinel, k := range errorKinds {
		if err == sentinel {
			return k, true
		}
	}
	return KindInternal, false
}
