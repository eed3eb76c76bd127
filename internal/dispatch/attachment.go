package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// Attachment is a file to be uploaded once and referenced by every send.
type Attachment struct {
	Data     []byte
	Filename string
	MimeType string
}

// NewAttachment sniffs the MIME type from the content; the browser-supplied
// type of an upload is not trusted.
func NewAttachment(data []byte, filename string) Attachment {
	return Attachment{
		Data:     data,
		Filename: filepath.Base(filename),
		MimeType: mimetype.Detect(data).String(),
	}
}

// RequireImage accepts jpeg and png content only.
func (a Attachment) RequireImage() error {
	m := mimetype.Detect(a.Data)
	if m.Is("image/jpeg") || m.Is("image/png") {
		return nil
	}
	return fmt.Errorf("%w: %s is %s", ErrNotImage, a.Filename, m.String())
}

// ImageSender hides the upload-then-reference protocol behind a single send.
// The attachment is uploaded at most once per sender.
type ImageSender struct {
	client Client
	att    Attachment

	mu  sync.Mutex
	ref *AttachmentRef
}

func NewImageSender(client Client, att Attachment) *ImageSender {
	return &ImageSender{client: client, att: att}
}

// Prepare uploads the attachment if that has not happened yet. The error is
// an *UploadError.
func (s *ImageSender) Prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ref != nil {
		return nil
	}
	ref, err := s.client.UploadAttachment(ctx, s.att)
	if err != nil {
		return err
	}
	s.ref = &ref
	return nil
}

// Ref returns the uploaded reference, if any.
func (s *ImageSender) Ref() (AttachmentRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ref == nil {
		return AttachmentRef{}, false
	}
	return *s.ref, true
}

// Send delivers the image with caption to phone.
func (s *ImageSender) Send(ctx context.Context, phone, caption string) Result {
	if err := s.Prepare(ctx); err != nil {
		return Failed(s.client.Name(), phone, err)
	}
	ref, _ := s.Ref()
	return s.client.SendAttachment(ctx, phone, caption, ref)
}
