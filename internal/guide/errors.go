package guide

import "errors"

// Custom guide errors
var (
	// ErrNonPositiveProgram indicates a resolved program with zero or negative
	// duration after window clamping; this signals resolver/offset corruption
	// and aborts the affected channel's build
	ErrNonPositiveProgram = errors.New("resolved program has non-positive duration")

	// ErrGuideNotReady indicates no guide has ever been successfully built and
	// the bounded wait for the first build expired
	ErrGuideNotReady = errors.New("guide has not been built yet")

	// ErrChannelNotFound indicates the requested channel does not exist
	ErrChannelNotFound = errors.New("channel not found")
)
