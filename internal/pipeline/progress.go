package pipeline

import "context"

// ProgressFunc receives the name of the stage a pipeline run is entering.
type ProgressFunc func(stage string)

type progressKey struct{}

// WithProgress returns a context that carries fn. Pipeline runs started with
// the returned context call fn as each stage begins, letting callers stream
// progress to clients without threading a callback through every signature.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// reportProgress invokes the context's progress callback, if any.
func reportProgress(ctx context.Context, stage string) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(stage)
	}
}
