// Package batch runs one message kind against every recipient of a roster,
// strictly one send at a time, and collects a result per recipient.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"parent-messenger/internal/config"
	"parent-messenger/internal/dispatch"
	"parent-messenger/internal/phone"
	"parent-messenger/internal/render"
	"parent-messenger/internal/roster"
)

// ErrInvalidJob is wrapped by job validation failures.
var ErrInvalidJob = errors.New("invalid job")

// Loader produces the recipients of a batch.
type Loader func(ctx context.Context) (*roster.Roster, error)

// Fixed returns a Loader for an already loaded roster.
func Fixed(r *roster.Roster) Loader {
	return func(context.Context) (*roster.Roster, error) { return r, nil }
}

// Job describes one batch.
type Job struct {
	Kind       render.Kind
	Load       Loader
	Assessment int
	Text       string
	// Attachment is uploaded once before the first send; every recipient then
	// gets it through the client that performed the upload.
	Attachment *dispatch.Attachment
}

func (j Job) validate() error {
	if j.Load == nil {
		return fmt.Errorf("%w: no roster", ErrInvalidJob)
	}
	switch j.Kind {
	case render.IAMarks:
		if j.Assessment <= 0 {
			return fmt.Errorf("%w: assessment number must be positive", ErrInvalidJob)
		}
	case render.Circular:
		if j.Attachment == nil {
			return fmt.Errorf("%w: circular needs an image", ErrInvalidJob)
		}
	case render.FreeText:
		if strings.TrimSpace(j.Text) == "" {
			return fmt.Errorf("%w: %v", ErrInvalidJob, render.ErrEmptyText)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, j.Kind)
	}
	return nil
}

type Dispatcher struct {
	Clients   dispatch.Router
	Prefix    phone.Prefix
	Timeout   time.Duration
	Logger    *zap.Logger
	Recorders []Recorder
}

// New builds a Dispatcher from configuration.
func New(cfg *config.Config, clients dispatch.Router, logger *zap.Logger, recorders ...Recorder) (*Dispatcher, error) {
	prefix, err := phone.NewPrefix(cfg.CountryCode)
	if err != nil {
		return nil, &config.Error{Key: "COUNTRY_CODE", Reason: err.Error()}
	}
	if clients.Default == nil {
		return nil, &config.Error{Key: "PROVIDER", Reason: "no client configured"}
	}
	return &Dispatcher{
		Clients:   clients,
		Prefix:    prefix,
		Timeout:   cfg.HTTPTimeout,
		Logger:    logger,
		Recorders: recorders,
	}, nil
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Run executes job. The returned error is non-nil only for failures that
// stop the batch before any send: an invalid job, a roster that cannot be
// loaded or an attachment that cannot be uploaded. Per-recipient failures
// are in the Outcome. Cancelling ctx stops the batch between recipients;
// a send already in flight is allowed to finish.
func (d *Dispatcher) Run(ctx context.Context, job Job) (*Outcome, error) {
	o := newOutcome(job.Kind)
	log := d.logger().With(zap.String("batch_id", o.ID.String()), zap.String("kind", string(job.Kind)))

	if err := job.validate(); err != nil {
		o.fail(err)
		d.finish(ctx, log, o)
		return o, err
	}

	o.State = StateLoadingRoster
	r, err := job.Load(ctx)
	if err != nil {
		log.Error("Failed to load roster", zap.Error(err))
		o.fail(err)
		d.finish(ctx, log, o)
		return o, err
	}
	o.Source = r.Source
	o.Total = r.Len()
	o.Diagnostics = r.Diagnostics
	if dropped := r.Diagnostics.Dropped(); dropped > 0 {
		log.Warn("Rows excluded from batch",
			zap.Int("dropped", dropped),
			zap.Strings("unmatched_students", r.Diagnostics.UnmatchedStudents),
			zap.Strings("unmatched_marks", r.Diagnostics.UnmatchedMarks),
			zap.Strings("duplicate_students", r.Diagnostics.DuplicateStudents),
			zap.Strings("duplicate_marks", r.Diagnostics.DuplicateMarks),
		)
	}

	var images *dispatch.ImageSender
	if job.Attachment != nil {
		images = dispatch.NewImageSender(d.Clients.Default, *job.Attachment)
		uploadCtx, cancel := d.sendContext(ctx)
		err := images.Prepare(uploadCtx)
		cancel()
		if err != nil {
			log.Error("Attachment upload failed", zap.String("filename", job.Attachment.Filename), zap.Error(err))
			o.fail(err)
			d.finish(ctx, log, o)
			return o, err
		}
		ref, _ := images.Ref()
		o.Attachment = &ref
		o.Filename = job.Attachment.Filename
		log.Info("Attachment uploaded", zap.String("filename", o.Filename), zap.String("media_id", ref.ID))
	}

	log.Info("Batch started", zap.Int("recipients", o.Total))
	for i, e := range r.Entries {
		if ctx.Err() != nil {
			for _, rest := range r.Entries[i:] {
				o.Skipped = append(o.Skipped, rest.Student.ID)
			}
			o.Cancelled = true
			break
		}

		res := d.deliver(ctx, o, job, e, images)
		o.add(res)

		o.State = StateRecording
		d.record(ctx, log, o, res)

		if res.Succeeded {
			log.Info("Message sent",
				zap.String("recipient", res.RecipientID),
				zap.String("provider", res.Provider),
				zap.Duration("duration", res.Duration))
		} else {
			log.Warn("Message failed",
				zap.String("recipient", res.RecipientID),
				zap.String("phone", res.Phone),
				zap.Int("status", res.StatusCode),
				zap.Error(res.Err))
		}
	}

	o.FinishedAt = time.Now()
	if o.Cancelled {
		o.State = StateCancelled
	} else {
		o.State = StateDone
	}
	d.finish(ctx, log, o)

	log.Info("Batch finished",
		zap.String("state", string(o.State)),
		zap.Int("succeeded", o.Succeeded),
		zap.Int("failed", o.Failed),
		zap.Int("skipped", len(o.Skipped)))
	return o, nil
}

func (d *Dispatcher) deliver(ctx context.Context, o *Outcome, job Job, e roster.Entry, images *dispatch.ImageSender) dispatch.Result {
	s := e.Student
	start := time.Now()
	stamp := func(res dispatch.Result, number string) dispatch.Result {
		res.RecipientID = s.ID
		res.Name = s.Name
		if res.Phone == "" {
			res.Phone = number
		}
		if res.Duration == 0 {
			res.Duration = time.Since(start)
		}
		return res
	}

	o.State = StateRendering
	body, err := render.Render(job.Kind, render.Input{
		Student:    s,
		Scores:     e.Scores,
		Assessment: job.Assessment,
		Text:       job.Text,
	})
	if err != nil {
		return stamp(dispatch.Failed("", s.Phone, dispatch.NewSendError(dispatch.KindRender, err)), s.Phone)
	}

	number, err := d.Prefix.Apply(s.Phone)
	if err != nil {
		return stamp(dispatch.Failed("", s.Phone, dispatch.NewSendError(dispatch.KindInvalidRecipient, err)), s.Phone)
	}

	o.State = StateSending
	sendCtx, cancel := d.sendContext(ctx)
	defer cancel()

	var res dispatch.Result
	if images != nil {
		res = images.Send(sendCtx, number, body)
	} else {
		res = d.Clients.For(s.Channel).SendText(sendCtx, number, body)
	}
	return stamp(res, number)
}

// sendContext keeps values from ctx but not its cancellation, so an
// operator cancel never aborts a request half way.
func (d *Dispatcher) sendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if d.Timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, d.Timeout)
}

func (d *Dispatcher) record(ctx context.Context, log *zap.Logger, o *Outcome, res dispatch.Result) {
	rctx := context.WithoutCancel(ctx)
	for _, rec := range d.Recorders {
		if err := rec.Record(rctx, o, res); err != nil {
			log.Warn("Recorder failed", zap.String("recipient", res.RecipientID), zap.Error(err))
		}
	}
}

func (d *Dispatcher) finish(ctx context.Context, log *zap.Logger, o *Outcome) {
	rctx := context.WithoutCancel(ctx)
	for _, rec := range d.Recorders {
		f, ok := rec.(Finisher)
		if !ok {
			continue
		}
		if err := f.Finish(rctx, o); err != nil {
			log.Warn("Recorder finish failed", zap.Error(err))
		}
	}
}
