package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
)

// UserSafeMessage returns an error message suitable for API consumers.
// Unexpected errors collapse to a generic message so internals never leak.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return "The requested record was not found"
	}
	return "Something went wrong, please try again"
}
