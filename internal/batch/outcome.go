package batch

import (
	"time"

	"github.com/google/uuid"

	"parent-messenger/internal/dispatch"
	"parent-messenger/internal/render"
	"parent-messenger/internal/roster"
)

// State is where a batch is in its lifecycle.
type State string

const (
	StateInit          State = "INIT"
	StateLoadingRoster State = "LOADING_ROSTER"
	StateRendering     State = "RENDERING"
	StateSending       State = "SENDING"
	StateRecording     State = "RECORDING"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
	StateCancelled     State = "CANCELLED"
)

// Outcome is the record of one batch run. Results hold exactly one entry
// per processed recipient, in roster order. Attachment is set once the
// shared upload of an attachment job has succeeded.
type Outcome struct {
	ID          uuid.UUID               `json:"id"`
	Kind        render.Kind             `json:"kind"`
	State       State                   `json:"state"`
	Source      string                  `json:"source,omitempty"`
	Total       int                     `json:"total"`
	Results     []dispatch.Result       `json:"results"`
	Succeeded   int                     `json:"succeeded"`
	Failed      int                     `json:"failed"`
	Skipped     []string                `json:"skipped,omitempty"`
	Cancelled   bool                    `json:"cancelled"`
	Diagnostics roster.Diagnostics      `json:"diagnostics"`
	Attachment  *dispatch.AttachmentRef `json:"attachment,omitempty"`
	Filename    string                  `json:"filename,omitempty"`
	Err         error                   `json:"-"`
	StartedAt   time.Time               `json:"started_at"`
	FinishedAt  time.Time               `json:"finished_at"`
}

func newOutcome(kind render.Kind) *Outcome {
	return &Outcome{
		ID:        uuid.New(),
		Kind:      kind,
		State:     StateInit,
		StartedAt: time.Now(),
	}
}

func (o *Outcome) add(res dispatch.Result) {
	o.Results = append(o.Results, res)
	if res.Succeeded {
		o.Succeeded++
	} else {
		o.Failed++
	}
}

func (o *Outcome) fail(err error) {
	o.State = StateFailed
	o.Err = err
	o.FinishedAt = time.Now()
}

// FailedIDs lists the recipients whose send did not succeed.
func (o *Outcome) FailedIDs() []string {
	var ids []string
	for _, r := range o.Results {
		if !r.Succeeded {
			ids = append(ids, r.RecipientID)
		}
	}
	return ids
}

// Pending lists the recipients that still have to be reached: failed sends
// followed by recipients skipped on cancellation.
func (o *Outcome) Pending() []string {
	return append(o.FailedIDs(), o.Skipped...)
}

// RetryFailed narrows r to the recipients prev did not reach.
func RetryFailed(r *roster.Roster, prev *Outcome) *roster.Roster {
	return r.Only(prev.Pending())
}
