// Package ai defines the generative call service consumed by the decision
// pipeline. Implementations live in subpackages; the pipeline depends only on
// this interface so providers can be swapped per deployment.
package ai

import (
	"context"
	"errors"
)

// Role identifies the author of a dialogue message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one dialogue turn passed to the model.
type Message struct {
	Role    Role
	Content string
}

// Request describes one generative call.
type Request struct {
	// Model identifier understood by the provider.
	Model string
	// System is the system/instruction prompt.
	System string
	// Messages are dialogue turns, oldest first.
	Messages []Message
	// Temperature in [0,2]; providers clamp as needed.
	Temperature float64
	// MaxTokens is the completion token budget.
	MaxTokens int
	// JSONOutput requests a structured JSON object response.
	JSONOutput bool
}

// Response is the outcome of a successful generative call.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	// Truncated is set when the completion was cut off by MaxTokens.
	Truncated bool
}

// TotalTokens returns the combined prompt and completion token count.
func (r Response) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// CallService issues generative model calls. A call either completes, times
// out, or errors; callers are expected to map every failure to a fallback.
type CallService interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrTimeout marks a call that exceeded its deadline. Providers wrap their
// transport-level timeout errors so callers can distinguish them.
var ErrTimeout = errors.New("ai: call timed out")

// IsTimeout reports whether err represents a call timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
