// Package provider holds the remote-service clients: the translation
// provider and the OpenAI-compatible completion provider. Both apply
// explicit timeouts and return typed errors the orchestrator can map to
// stage-specific failures.
package provider

import "fmt"

// Error describes a remote provider failure with enough context to log
// and map to an HTTP response. Status is zero for transport failures.
type Error struct {
	Provider string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s provider: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s provider: %s", e.Provider, e.Message)
}
