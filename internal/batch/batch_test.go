package batch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"parent-messenger/internal/config"
	"parent-messenger/internal/dispatch"
	"parent-messenger/internal/dispatch/dispatchtest"
	"parent-messenger/internal/phone"
	"parent-messenger/internal/render"
	"parent-messenger/internal/roster"
)

func newRoster(phones ...string) *roster.Roster {
	r := &roster.Roster{Source: "students.csv", Subjects: []string{"Math", "Physics"}}
	for i, p := range phones {
		id := "S" + string(rune('1'+i))
		r.Entries = append(r.Entries, roster.Entry{
			Student: roster.Student{ID: id, Name: "Student " + id, Phone: p, Channel: roster.WhatsApp},
			Scores:  []roster.Score{{Subject: "Math", Value: "18"}, {Subject: "Physics", Value: "17"}},
		})
	}
	return r
}

func newDispatcher(t *testing.T, c dispatch.Client, recorders ...Recorder) *Dispatcher {
	t.Helper()
	prefix, err := phone.NewPrefix("+91")
	require.NoError(t, err)
	return &Dispatcher{
		Clients:   dispatch.Router{Default: c},
		Prefix:    prefix,
		Timeout:   time.Second,
		Logger:    zap.NewNop(),
		Recorders: recorders,
	}
}

func TestRun_OneResultPerRecipient(t *testing.T) {
	fake := dispatchtest.New("fake")
	d := newDispatcher(t, fake)
	r := newRoster("9876500001", "9876500002", "9876500003", "9876500004")

	o, err := d.Run(context.Background(), Job{Kind: render.IAMarks, Assessment: 2, Load: Fixed(r)})
	require.NoError(t, err)

	assert.Equal(t, StateDone, o.State)
	assert.Equal(t, 4, o.Total)
	require.Len(t, o.Results, r.Len())
	assert.Equal(t, 4, o.Succeeded)
	assert.Equal(t, 0, o.Failed)
	for i, res := range o.Results {
		assert.Equal(t, r.Entries[i].Student.ID, res.RecipientID, "roster order")
	}
	assert.False(t, o.FinishedAt.Before(o.StartedAt))
	assert.NotEqual(t, "", o.ID.String())
}

func TestRun_SecondRecipientFails(t *testing.T) {
	fake := dispatchtest.New("fake")
	fake.FailFor["+919876500002"] = nil
	d := newDispatcher(t, fake)

	o, err := d.Run(context.Background(), Job{Kind: render.IAMarks, Assessment: 1, Load: Fixed(newRoster("9876500001", "9876500002", "9876500003"))})
	require.NoError(t, err)

	require.Len(t, o.Results, 3)
	assert.True(t, o.Results[0].Succeeded)
	assert.False(t, o.Results[1].Succeeded)
	assert.True(t, o.Results[2].Succeeded, "a failure does not stop the batch")
	assert.Equal(t, 2, o.Succeeded)
	assert.Equal(t, 1, o.Failed)
	assert.Equal(t, []string{"S2"}, o.FailedIDs())
	assert.Equal(t, 500, o.Results[1].StatusCode)
	assert.Len(t, fake.Calls(), 3)
}

func TestRun_UploadFailureSendsNothing(t *testing.T) {
	fake := dispatchtest.New("fake")
	fake.UploadErr = errors.New("413 too large")
	d := newDispatcher(t, fake)

	att := dispatch.Attachment{Data: []byte("img"), Filename: "circular.png", MimeType: "image/png"}
	o, err := d.Run(context.Background(), Job{Kind: render.Circular, Attachment: &att, Load: Fixed(newRoster("9876500001", "9876500002"))})

	var ue *dispatch.UploadError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, StateFailed, o.State)
	assert.Same(t, ue, o.Err)
	assert.Empty(t, o.Results)
	assert.Empty(t, fake.Calls())
}

func TestRun_CircularUploadsOnce(t *testing.T) {
	fake := dispatchtest.New("fake")
	d := newDispatcher(t, fake)

	att := dispatch.Attachment{Data: []byte("img"), Filename: "circular.png", MimeType: "image/png"}
	o, err := d.Run(context.Background(), Job{Kind: render.Circular, Attachment: &att, Load: Fixed(newRoster("9876500001", "9876500002", "9876500003"))})
	require.NoError(t, err)

	assert.Equal(t, 3, o.Succeeded)
	assert.Len(t, fake.Uploads(), 1)
	for _, c := range fake.Calls() {
		require.NotNil(t, c.Ref)
		assert.Equal(t, "media-1", c.Ref.ID)
		assert.Equal(t, render.CircularLine, c.Body)
	}
}

func TestRun_PhoneNormalisation(t *testing.T) {
	fake := dispatchtest.New("fake")
	d := newDispatcher(t, fake)

	o, err := d.Run(context.Background(), Job{Kind: render.FreeText, Text: "hello", Load: Fixed(newRoster("9876543210", "+919876500002", "919876500003", "12"))})
	require.NoError(t, err)

	assert.Equal(t, []string{"+919876543210", "+919876500002", "+919876500003"}, fake.Phones())
	require.Len(t, o.Results, 4)
	assert.Equal(t, "+919876543210", o.Results[0].Phone)

	bad := o.Results[3]
	assert.False(t, bad.Succeeded)
	var se *dispatch.SendError
	require.True(t, errors.As(bad.Err, &se))
	assert.Equal(t, dispatch.KindInvalidRecipient, se.Kind)
	assert.True(t, errors.Is(bad.Err, phone.ErrInvalidNumber))
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := dispatchtest.New("fake")
	fake.BeforeSend = func(string) { cancel() }
	d := newDispatcher(t, fake)

	o, err := d.Run(ctx, Job{Kind: render.FreeText, Text: "hi", Load: Fixed(newRoster("9876500001", "9876500002", "9876500003"))})
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, o.State)
	assert.True(t, o.Cancelled)
	require.Len(t, o.Results, 1)
	assert.True(t, o.Results[0].Succeeded, "the in-flight send completes")
	assert.Equal(t, []string{"S2", "S3"}, o.Skipped)
	assert.Equal(t, []string{"S2", "S3"}, o.Pending())
}

func TestRun_RoutesSMSRecipients(t *testing.T) {
	wa := dispatchtest.New("wa")
	sms := dispatchtest.New("sms")
	d := newDispatcher(t, wa)
	d.Clients.SMS = sms

	r := newRoster("9876500001", "9876500002")
	r.Entries[1].Student.Channel = roster.SMS

	o, err := d.Run(context.Background(), Job{Kind: render.FreeText, Text: "hi", Load: Fixed(r)})
	require.NoError(t, err)

	assert.Equal(t, []string{"+919876500001"}, wa.Phones())
	assert.Equal(t, []string{"+919876500002"}, sms.Phones())
	assert.Equal(t, "sms", o.Results[1].Provider)
}

func TestRun_RendersMarks(t *testing.T) {
	fake := dispatchtest.New("fake")
	d := newDispatcher(t, fake)

	_, err := d.Run(context.Background(), Job{Kind: render.IAMarks, Assessment: 2, Load: Fixed(newRoster("9876500001"))})
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Dear Parent,\nThis message is regarding the I.A. 2 marks of your ward, Student S1.\nMath: 18\nPhysics: 17\nThank you.", calls[0].Body)
}

type finishRecorder struct {
	records  int
	finished *Outcome
}

func (f *finishRecorder) Record(context.Context, *Outcome, dispatch.Result) error {
	f.records++
	return nil
}

func (f *finishRecorder) Finish(_ context.Context, o *Outcome) error {
	f.finished = o
	return nil
}

func TestRun_RecorderFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	broken := RecorderFunc(func(context.Context, *Outcome, dispatch.Result) error {
		return errors.New("disk full")
	})
	fin := &finishRecorder{}

	fake := dispatchtest.New("fake")
	d := newDispatcher(t, fake, broken, fin)
	d.Logger = zap.New(core)

	o, err := d.Run(context.Background(), Job{Kind: render.FreeText, Text: "hi", Load: Fixed(newRoster("9876500001", "9876500002"))})
	require.NoError(t, err)

	assert.Equal(t, 2, o.Succeeded)
	assert.Equal(t, 2, fin.records)
	assert.Same(t, o, fin.finished)
	assert.Equal(t, 2, logs.FilterMessage("Recorder failed").Len())
}

func TestRun_FatalLoadError(t *testing.T) {
	fake := dispatchtest.New("fake")
	d := newDispatcher(t, fake)

	loadErr := &roster.MissingColumnError{Source: "students.csv", Column: "USN"}
	o, err := d.Run(context.Background(), Job{Kind: render.FreeText, Text: "hi", Load: func(context.Context) (*roster.Roster, error) {
		return nil, loadErr
	}})

	var mce *roster.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, StateFailed, o.State)
	assert.Empty(t, fake.Calls())
}

func TestRun_InvalidJobs(t *testing.T) {
	d := newDispatcher(t, dispatchtest.New("fake"))
	r := Fixed(newRoster("9876500001"))

	for name, job := range map[string]Job{
		"empty text":      {Kind: render.FreeText, Text: "  ", Load: r},
		"no assessment":   {Kind: render.IAMarks, Load: r},
		"circular no img": {Kind: render.Circular, Load: r},
		"no loader":       {Kind: render.FreeText, Text: "hi"},
		"unknown kind":    {Kind: "FAX", Load: r},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := d.Run(context.Background(), job)
			assert.True(t, errors.Is(err, ErrInvalidJob), "got %v", err)
		})
	}
}

func TestRetryFailed(t *testing.T) {
	r := newRoster("9876500001", "9876500002", "9876500003")
	prev := &Outcome{
		Results: []dispatch.Result{
			{RecipientID: "S1", Succeeded: true},
			{RecipientID: "S2"},
		},
		Skipped: []string{"S3"},
	}

	retry := RetryFailed(r, prev)
	require.Equal(t, 2, retry.Len())
	assert.Equal(t, "S2", retry.Entries[0].Student.ID)
	assert.Equal(t, "S3", retry.Entries[1].Student.ID)
}

func TestNew_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.CountryCode = "+44"

	d, err := New(&cfg, dispatch.Router{Default: dispatchtest.New("fake")}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "+44", d.Prefix.String())
	assert.Equal(t, cfg.HTTPTimeout, d.Timeout)

	_, err = New(&cfg, dispatch.Router{}, nil)
	var cerr *config.Error
	require.True(t, errors.As(err, &cerr))
	assert.True(t, strings.Contains(cerr.Error(), "PROVIDER"))
}
