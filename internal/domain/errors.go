package domain

import "errors"

// Client-visible outcomes of exchange operations. Callers compare with errors.Is.
var (
	ErrInvalidRarity = errors.New("invalid rarity")
	ErrInvalidInput  = errors.New("invalid input")

	ErrNotOwned           = errors.New("card not owned by user")
	ErrCardAlreadyOffered = errors.New("card already has an open offer")

	ErrOfferNotFound     = errors.New("offer not found")
	ErrOfferNotOpen      = errors.New("offer is not open")
	ErrRequestNotFound   = errors.New("request not found")
	ErrRequestNotPending = errors.New("request is not pending")

	ErrNotOfferOwner = errors.New("not your offer")
	ErrSelfTrade     = errors.New("cannot request your own offer")

	ErrRarityTooLow = errors.New("offered card does not meet minimum rarity")

	ErrCardNoLongerAvailable = errors.New("one of the cards is no longer available")

	// ErrConflict is an infrastructure outcome: the operation lost a race at
	// the storage or lock level and may be retried by the caller.
	ErrConflict = errors.New("concurrent update, retry")

	// ErrCardNotFound is returned by the catalog for unknown card ids.
	ErrCardNotFound = errors.New("card not found")
)

// Class groups errors by the taxonomy callers branch on.
type Class int

const (
	ClassInfrastructure Class = iota
	ClassValidation
	ClassOwnership
	ClassState
	ClassAuthorization
	ClassEligibility
	ClassConsistency
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassOwnership:
		return "ownership"
	case ClassState:
		return "state"
	case ClassAuthorization:
		return "authorization"
	case ClassEligibility:
		return "eligibility"
	case ClassConsistency:
		return "consistency"
	default:
		return "infrastructure"
	}
}

var classes = []struct {
	err   error
	class Class
}{
	{ErrInvalidRarity, ClassValidation},
	{ErrInvalidInput, ClassValidation},
	{ErrNotOwned, ClassOwnership},
	{ErrCardAlreadyOffered, ClassOwnership},
	{ErrOfferNotFound, ClassState},
	{ErrOfferNotOpen, ClassState},
	{ErrRequestNotFound, ClassState},
	{ErrRequestNotPending, ClassState},
	{ErrNotOfferOwner, ClassAuthorization},
	{ErrSelfTrade, ClassAuthorization},
	{ErrRarityTooLow, ClassEligibility},
	{ErrCardNoLongerAvailable, ClassConsistency},
}

// ClassOf maps err onto the taxonomy. Anything unknown, including
// ErrConflict and wrapped driver errors, is infrastructure.
func ClassOf(err error) Class {
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.class
		}
	}
	return ClassInfrastructure
}

// IsRejection reports whether err is a domain rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	return err != nil && ClassOf(err) != ClassInfrastructure
}
