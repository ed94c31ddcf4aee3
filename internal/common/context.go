package common

import "context"

type contextKey string

const contextKeyBatchID contextKey = "enrollscan.batch_id"

// WithBatchID tags the context with the run's batch ID so every log line
// emitted downstream can be tied back to one invocation.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, contextKeyBatchID, batchID)
}

// BatchIDFromContext returns the batch ID, or "" outside a batch run.
func BatchIDFromContext(ctx context.Context) string {
	if batchID, ok := ctx.Value(contextKeyBatchID).(string); ok {
		return batchID
	}
	return ""
}
