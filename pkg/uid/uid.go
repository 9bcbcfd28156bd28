package uid

import "github.com/google/uuid"

// New generates a new unique identifier. Sync runs, jobs and request ids
// all share this format.
func New() string {
	return uuid.New().String()
}

// IsValid reports whether id parses as a UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
