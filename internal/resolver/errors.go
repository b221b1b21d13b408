package resolver

import "errors"

// Corruption errors. These indicate a lineup/offset desync and are fatal to
// the affected channel's guide build; they must be surfaced, never clamped.
var (
	// ErrOffsetDesync indicates the offset table disagrees with the item list
	ErrOffsetDesync = errors.New("lineup offset table out of sync with items")

	// ErrInvalidCycleDuration indicates a non-positive total lineup duration
	ErrInvalidCycleDuration = errors.New("lineup cycle duration must be positive")
)

// IsCorruption checks if the error is a lineup corruption error
func IsCorruption(err error) bool {
	return errors.Is(err, ErrOffsetDesync) || errors.Is(err, ErrInvalidCycleDuration)
}
