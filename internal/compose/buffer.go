package compose

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/maildeck/maildeck/internal/contact"
	"github.com/maildeck/maildeck/internal/models"
)

// Attachment is a file added to the compose buffer. The binary content
// stays local to the session: autosave persists only filename and content
// type; the payload ships only with the outgoing message on send.
type Attachment struct {
	ID          string
	Filename    string
	ContentType string
	Content     []byte
}

// NewAttachment wraps file content with a client-side id so the UI can
// remove individual attachments before they ever reach the backend.
func NewAttachment(filename, contentType string, content []byte) Attachment {
	return Attachment{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	}
}

// Buffer is the transient state of one open compose session. Recipients are
// structured (pre-codec); they become wire strings only in the saved payload.
type Buffer struct {
	To          []contact.Contact
	CC          []contact.Contact
	BCC         []contact.Contact
	Subject     string
	BodyHTML    string
	Attachments []Attachment
}

// IsEmpty reports whether recipients, subject, and body are all empty.
// An empty buffer is never persisted as a draft.
func (b *Buffer) IsEmpty() bool {
	return len(b.To) == 0 &&
		len(b.CC) == 0 &&
		len(b.BCC) == 0 &&
		strings.TrimSpace(b.Subject) == "" &&
		strings.TrimSpace(b.BodyHTML) == ""
}

// Fingerprint returns a deterministic digest of the buffer's persisted
// content: serialized recipients, subject, body, and attachment metadata.
// Equality with the last saved fingerprint means an autosave tick can skip
// the network; restoring earlier content produces the earlier fingerprint.
func (b *Buffer) Fingerprint() string {
	h := sha256.New()
	for _, field := range []string{
		contact.ToWireString(b.To),
		contact.ToWireString(b.CC),
		contact.ToWireString(b.BCC),
		b.Subject,
		b.BodyHTML,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0x1f})
	}
	for _, att := range b.Attachments {
		h.Write([]byte(att.Filename))
		h.Write([]byte{0x1f})
		h.Write([]byte(att.ContentType))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// payload converts the buffer to the backend's draft shape. Empty fields
// are sent as null, matching the contract's all-nullable payload.
func (b *Buffer) payload() models.DraftPayload {
	p := models.DraftPayload{}
	if wire := contact.ToWireString(b.To); wire != "" {
		p.ToEmail = &wire
	}
	if wire := contact.ToWireString(b.CC); wire != "" {
		p.CCEmail = &wire
	}
	if wire := contact.ToWireString(b.BCC); wire != "" {
		p.BCCEmail = &wire
	}
	if b.Subject != "" {
		subject := b.Subject
		p.Subject = &subject
	}
	if b.BodyHTML != "" {
		body := b.BodyHTML
		p.BodyHTML = &body
	}
	for _, att := range b.Attachments {
		p.Attachments = append(p.Attachments, models.DraftAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
		})
	}
	return p
}
