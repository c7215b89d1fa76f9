package dues

import (
	"errors"
	"fmt"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
)

var (
	ErrInvalidTransition     = errors.New("invalid dues transition")
	ErrReminderLimitExceeded = errors.New("reminder limit exceeded")
	ErrPaymentMethodRequired = errors.New("payment method is required")
	ErrPaidInvariant         = errors.New("paid status requires paid date and payment method")
)

// InvalidTransitionError reports a transition the current status does not allow.
// It matches ErrInvalidTransition with errors.Is.
type InvalidTransitionError struct {
	From entity.DuesStatus
	To   entity.DuesStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid dues transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IsAlreadyPaid reports whether err is a rejected transition out of Paid.
func IsAlreadyPaid(err error) bool {
	var transitionErr *InvalidTransitionError
	return errors.As(err, &transitionErr) && transitionErr.From == entity.DuesStatusPaid
}
