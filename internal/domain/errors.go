package domain

import "errors"

// ValidationError marks a rejected mutation: the prior state is left
// untouched and the message is safe to surface to the user.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

var (
	// ErrPriceUnavailable is the soft failure returned when a price cannot
	// be resolved for a context (future date, provider failure, no data).
	// Callers degrade the affected figures rather than aborting.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrWeekInFuture rejects a confirm for a week whose anchor date has not
	// been reached yet.
	ErrWeekInFuture = errors.New("week is in the future")

	// ErrPlanIncomplete rejects a confirm when at least one asset's figures
	// could not be computed (price unavailable).
	ErrPlanIncomplete = errors.New("plan has unavailable entries")

	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")
)
