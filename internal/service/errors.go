package service

import (
	"errors"
	"fmt"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"

	"github.com/google/uuid"
)

// Sentinel errors of the inventory core. Typed errors below unwrap to them,
// so callers can use errors.Is for the category and errors.As for context.
var (
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrParentNotFound      = errors.New("parent variant not found")
	ErrOutOfStock          = errors.New("out of stock")
	ErrStockMismatch       = errors.New("stock mismatch")
	ErrUnavailable         = errors.New("storage unavailable")

	ErrProductNotFound   = errors.New("product not found")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrUnitNotFound      = errors.New("unit not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrLastVariant       = errors.New("product must keep at least one active variant")
	ErrVariantHasStock   = errors.New("variant still holds stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidKind       = errors.New("operation not allowed for this variant kind")
	ErrInvalidInput      = errors.New("invalid input")
)

// DuplicateIdentifierError is returned when a serial is already held by an
// active unit. The write was rejected; nothing was merged.
type DuplicateIdentifierError struct {
	Serial         string
	ExistingUnitID uuid.UUID
}

func (e *DuplicateIdentifierError) Error() string {
	if e.ExistingUnitID == uuid.Nil {
		return fmt.Sprintf("serial %q is already held by an active unit", e.Serial)
	}
	return fmt.Sprintf("serial %q is already held by active unit %s", e.Serial, e.ExistingUnitID)
}

func (e *DuplicateIdentifierError) Unwrap() error { return ErrDuplicateIdentifier }

type ParentNotFoundError struct {
	ParentID uuid.UUID
	Reason   string
}

func (e *ParentNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("parent variant %s not found: %s", e.ParentID, e.Reason)
	}
	return fmt.Sprintf("parent variant %s not found", e.ParentID)
}

func (e *ParentNotFoundError) Unwrap() error { return ErrParentNotFound }

type OutOfStockError struct {
	ParentID uuid.UUID
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("parent variant %s has no available unit", e.ParentID)
}

func (e *OutOfStockError) Unwrap() error { return ErrOutOfStock }

// StockMismatchError is produced only by the bulk audit, after it has already
// corrected the stored quantity.
type StockMismatchError struct {
	VariantID uuid.UUID
	Stored    int
	Actual    int
}

func (e *StockMismatchError) Error() string {
	return fmt.Sprintf("variant %s stored quantity %d, units say %d", e.VariantID, e.Stored, e.Actual)
}

func (e *StockMismatchError) Unwrap() error { return ErrStockMismatch }

// UnavailableError wraps a transient storage failure. Safe to retry.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

var domainErrors = []error{
	ErrDuplicateIdentifier, ErrParentNotFound, ErrOutOfStock, ErrStockMismatch, ErrUnavailable,
	ErrProductNotFound, ErrVariantNotFound, ErrUnitNotFound, ErrInvalidTransition,
	ErrLastVariant, ErrVariantHasStock, ErrInsufficientStock, ErrInvalidKind, ErrInvalidInput,
}

// storeErr classifies an error leaving a transaction. Domain errors pass
// through unchanged; transient storage failures become UnavailableError.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	if repository.IsTransient(err) {
		return &UnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
