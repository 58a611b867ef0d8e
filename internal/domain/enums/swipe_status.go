package enums

import "strings"

type SwipeStatus string

const (
	SwipeStatusLike      SwipeStatus = "like"
	SwipeStatusSuperLike SwipeStatus = "superlike"
	SwipeStatusDislike   SwipeStatus = "dislike"
)

// IsPositive reports whether the status counts toward match formation.
func (s SwipeStatus) IsPositive() bool {
	return s == SwipeStatusLike || s == SwipeStatusSuperLike
}

func (s SwipeStatus) Valid() bool {
	switch s {
	case SwipeStatusLike, SwipeStatusSuperLike, SwipeStatusDislike:
		return true
	default:
		return false
	}
}

// ParseSwipeStatus accepts the canonical values plus the legacy swipe directions
// (right = superlike, up = like, left = dislike).
func ParseSwipeStatus(input string) (SwipeStatus, bool) {
	value := strings.ToLower(strings.TrimSpace(input))
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")

	switch value {
	case "like", "up":
		return SwipeStatusLike, true
	case "superlike", "right":
		return SwipeStatusSuperLike, true
	case "dislike", "left":
		return SwipeStatusDislike, true
	default:
		return "", false
	}
}
