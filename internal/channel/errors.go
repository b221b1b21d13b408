package channel

import "errors"

// Custom channel service errors
var (
	// ErrDuplicateChannelNumber indicates a channel with the same number already exists
	ErrDuplicateChannelNumber = errors.New("channel number already exists")

	// ErrChannelNotFound indicates the requested channel does not exist
	ErrChannelNotFound = errors.New("channel not found")

	// ErrInvalidChannelNumber indicates a non-positive channel number
	ErrInvalidChannelNumber = errors.New("channel number must be positive")

	// ErrInvalidItemDuration indicates a lineup item with a non-positive duration
	ErrInvalidItemDuration = errors.New("lineup item duration must be positive")

	// ErrRedirectToSelf indicates a redirect item targeting its own channel
	ErrRedirectToSelf = errors.New("redirect item cannot target its own channel")
)

// IsChannelNotFound checks if the error is a channel not found error
func IsChannelNotFound(err error) bool {
	return errors.Is(err, ErrChannelNotFound)
}

// IsDuplicateNumber checks if the error is a duplicate channel number error
func IsDuplicateNumber(err error) bool {
	return errors.Is(err, ErrDuplicateChannelNumber)
}
