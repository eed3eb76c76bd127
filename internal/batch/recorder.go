package batch

import (
	"context"

	"parent-messenger/internal/dispatch"
)

// Recorder is told about every result as soon as it is known. A failing
// recorder never stops a batch.
type Recorder interface {
	Record(ctx context.Context, o *Outcome, res dispatch.Result) error
}

// Finisher is implemented by recorders that want the final outcome.
type Finisher interface {
	Finish(ctx context.Context, o *Outcome) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, o *Outcome, res dispatch.Result) error

func (f RecorderFunc) Record(ctx context.Context, o *Outcome, res dispatch.Result) error {
	return f(ctx, o, res)
}
