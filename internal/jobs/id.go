package jobs

import "github.com/google/uuid"

// GenerateID creates a new random job ID with the given prefix. The ID is
// the leading segment of an upload key, so it never contains "/".
func GenerateID(prefix string) string {
	return prefix + uuid.NewString()
}
