package compose

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jhillyerd/enmime"
)

// ErrNoRecipients is returned when Send is attempted on a buffer with no
// To recipients.
var ErrNoRecipients = errors.New("message has no recipients")

// BuildMIME assembles the compose buffer into an RFC 5322 message ready for
// the backend's send endpoint. Attachment binary payloads are included here
// and only here; they never travel with draft autosaves.
func BuildMIME(fromAddress string, buf Buffer) ([]byte, error) {
	if len(buf.To) == 0 {
		return nil, ErrNoRecipients
	}

	builder := enmime.Builder().
		From("", fromAddress).
		Subject(buf.Subject).
		HTML([]byte(buf.BodyHTML))

	for _, c := range buf.To {
		builder = builder.To(c.DisplayName, c.Address)
	}
	for _, c := range buf.CC {
		builder = builder.CC(c.DisplayName, c.Address)
	}
	for _, c := range buf.BCC {
		builder = builder.BCC(c.DisplayName, c.Address)
	}
	for _, att := range buf.Attachments {
		builder = builder.AddAttachment(att.Content, att.ContentType, att.Filename)
	}

	part, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building MIME message: %w", err)
	}

	var out bytes.Buffer
	if err := part.Encode(&out); err != nil {
		return nil, fmt.Errorf("encoding MIME message: %w", err)
	}
	return out.Bytes(), nil
}
