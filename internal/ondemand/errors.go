package ondemand

import "errors"

// Custom on-demand service errors
var (
	// ErrNotOnDemand indicates the channel is not in on-demand mode
	ErrNotOnDemand = errors.New("channel is not in on-demand mode")

	// ErrChannelNotFound indicates the requested channel does not exist
	ErrChannelNotFound = errors.New("channel not found")
)

// IsNotOnDemand checks if the error is a not-on-demand error
func IsNotOnDemand(err error) bool {
	return errors.Is(err, ErrNotOnDemand)
}
