package redis

import "fmt"

// StateKey returns the key holding one persisted engine document for a session
// Pattern: advisor:{session}:{name}
func StateKey(session, name string) string {
	return fmt.Sprintf("advisor:%s:%s", session, name)
}
