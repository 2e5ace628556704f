package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/remembrance/memorial-backend/internal/common"
)

// Lifecycle errors
var (
	ErrObituaryNotFound  = errors.New("obituary not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrReasonRequired    = errors.New("rejection reason is required")
	ErrNotEligible       = errors.New("action is not available yet")
	ErrImageFetch        = errors.New("failed to fetch archive image")
	ErrSweepInProgress   = errors.New("another sweep is in progress")
)

// Comment and notification errors
var (
	ErrCommentNotFound      = errors.New("comment not found")
	ErrCommentsClosed       = errors.New("comments are closed for this obituary")
	ErrTributesDisabled     = errors.New("tributes are disabled for this obituary")
	ErrNotificationNotFound = errors.New("notification not found")
)

// ErrStorageDisabled is returned by uploads when no object storage is configured
var ErrStorageDisabled = errors.New("image storage is not configured")

// MaxAppreciationLength caps the appreciation message in characters
const MaxAppreciationLength = 2000

// Appreciation validation errors wrap common.ErrInvalidInput
var (
	ErrMessageRequired = fmt.Errorf("%w: message is required", common.ErrInvalidInput)
	ErrMessageTooLong  = fmt.Errorf("%w: message exceeds %d characters", common.ErrInvalidInput, MaxAppreciationLength)
)

// EligibilityError reports a time-gated action requested too early
type EligibilityError struct {
	Action      string
	AvailableAt time.Time
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("%s is available after %s", e.Action, e.AvailableAt.UTC().Format("January 2, 2006"))
}

// Is makes errors.Is(err, ErrNotEligible) match
func (e *EligibilityError) Is(target error) bool {
	return target == ErrNotEligible
}
