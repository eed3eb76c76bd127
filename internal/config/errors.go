package config

import "fmt"

// Error reports a missing or invalid configuration value. It is returned
// before any message is sent.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}
