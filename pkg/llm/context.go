package llm

import "context"

type contextKey string

const callLabelsKey contextKey = "llm_call_labels"

// WithLabels attaches log labels (task, resource, section) to LLM calls made with ctx.
// Labels merge with any already present.
func WithLabels(ctx context.Context, labels map[string]string) context.Context {
	merged := Labels(ctx)
	if merged == nil {
		merged = make(map[string]string, len(labels))
	}
	for k, v := range labels {
		merged[k] = v
	}
	return context.WithValue(ctx, callLabelsKey, merged)
}

// WithPurpose labels calls with the prompt type they serve.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return WithLabels(ctx, map[string]string{"purpose": purpose})
}

// Labels returns a copy of the labels on ctx, or nil.
func Labels(ctx context.Context) map[string]string {
	c, ok := ctx.Value(callLabelsKey).(map[string]string)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
