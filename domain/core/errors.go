package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Structural errors are fatal to a run.
	ErrStructural          = errors.New("structural error")
	ErrNonMonotonicTerms   = fmt.Errorf("%w: term boundaries are not monotonic", ErrStructural)
	ErrOverlappingTerms    = fmt.Errorf("%w: terms overlap", ErrStructural)
	ErrInvalidCalendar     = fmt.Errorf("%w: invalid term calendar", ErrStructural)
	ErrInvalidSeries       = fmt.Errorf("%w: invalid observation series", ErrStructural)
	ErrInvalidDefinition   = fmt.Errorf("%w: invalid metric definition", ErrStructural)
	ErrInvalidPairing      = fmt.Errorf("%w: invalid transform/aggregation pairing", ErrStructural)
	ErrDuplicateMetricID   = fmt.Errorf("%w: duplicate metric id", ErrStructural)
	ErrDefinitionDrift     = fmt.Errorf("%w: metric id reused with a different definition", ErrStructural)
	ErrInvalidRule         = fmt.Errorf("%w: invalid attribution rule", ErrStructural)
	ErrInvalidRandomConfig = fmt.Errorf("%w: invalid randomization configuration", ErrStructural)
	ErrUnknownSeries       = fmt.Errorf("%w: unknown series", ErrStructural)

	// Family-level inconsistency is fatal as well, but kept apart so callers
	// can report it separately.
	ErrFamilyInconsistent = errors.New("inconsistent metric family")

	// Domain errors are localized to one (metric, term) pair.
	ErrDomain             = errors.New("domain error")
	ErrDivisionByZero     = fmt.Errorf("%w: division by zero", ErrDomain)
	ErrNonPositiveValue   = fmt.Errorf("%w: non-positive value", ErrDomain)
	ErrNonPositiveHorizon = fmt.Errorf("%w: non-positive horizon", ErrDomain)
	ErrTooFewValues       = fmt.Errorf("%w: too few values", ErrDomain)

	// Inference errors
	ErrInsufficientGroups = errors.New("both label groups need at least one value")
)

// NewValidationError builds a structural error naming the offending field.
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrStructural, field, reason)
}

// NewDomainError wraps a domain sentinel with context.
func NewDomainError(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// IsStructuralError reports whether err is fatal to a run.
func IsStructuralError(err error) bool {
	return errors.Is(err, ErrStructural) || errors.Is(err, ErrFamilyInconsistent)
}

// IsDomainError reports whether err is localized to a single metric/term pair.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrDomain)
}
