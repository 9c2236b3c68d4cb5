package pipeline

import "context"

// escalateOnLowConfidence runs a deterministic producer first and only pays
// for a generative call when its confidence is at or below the threshold.
// If the escalation fails, the deterministic result wins regardless of its
// confidence. Availability over accuracy.
func escalateOnLowConfidence[T any](
	ctx context.Context,
	threshold float64,
	deterministic func() (T, float64),
	escalate func(context.Context) (T, error),
) T {
	result, confidence := deterministic()
	if confidence > threshold {
		return result
	}
	escalated, err := escalate(ctx)
	if err != nil {
		return result
	}
	return escalated
}

// generateWithFallback runs a generative producer and maps any failure to the
// deterministic fallback. The pipeline never surfaces a raw call failure.
func generateWithFallback[T any](
	ctx context.Context,
	primary func(context.Context) (T, error),
	fallback func(err error) T,
) T {
	result, err := primary(ctx)
	if err != nil {
		return fallback(err)
	}
	return result
}
