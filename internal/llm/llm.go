// Package llm defines the text generation provider contract and the
// meeting minutes generator built on top of it.
package llm

import "context"

// Generator produces text from a prompt pair. Calls are synchronous and
// bounded only by the caller's context.
type Generator interface {
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
	Close() error
}
