package lineup

import "errors"

// Custom lineup store errors
var (
	// ErrLineupNotFound indicates no lineup blob exists for the channel
	ErrLineupNotFound = errors.New("lineup not found")

	// ErrInvalidItemDuration indicates a lineup item with a non-positive
	// duration; zero and negative durations corrupt offset arithmetic and are
	// rejected at write time
	ErrInvalidItemDuration = errors.New("lineup item duration must be positive")

	// ErrLineupExists indicates a lineup blob already exists for the channel
	ErrLineupExists = errors.New("lineup already exists")
)

// IsNotFound checks if the error is a lineup not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLineupNotFound)
}
