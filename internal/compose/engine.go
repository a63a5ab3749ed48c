package compose

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maildeck/maildeck/internal/contact"
	"github.com/maildeck/maildeck/internal/models"
	"github.com/maildeck/maildeck/internal/notify"
	"github.com/maildeck/maildeck/internal/restapi"
)

// DefaultAutosaveInterval is how often the engine persists a changed buffer.
const DefaultAutosaveInterval = 30 * time.Second

// saveTimeout bounds a single autosave round-trip.
const saveTimeout = 20 * time.Second

// DraftService is the slice of the backend API the engine needs.
type DraftService interface {
	CreateDraft(ctx context.Context, accountID string, payload models.DraftPayload) (*models.Draft, error)
	UpdateDraft(ctx context.Context, accountID, draftID string, payload models.DraftPayload) error
	DeleteDraft(ctx context.Context, accountID, draftID string) error
	SendMessage(ctx context.Context, accountID string, rawMIME []byte) error
}

// Engine owns one compose session: the buffer, the draft identity, the last
// successfully saved fingerprint, and the autosave timer. The timer is an
// explicit owned resource with a single start/stop lifecycle tied to the
// session; every exit path (close, send, reset) stops it.
//
// At most one save is in flight at a time: the periodic tick and explicit
// saves share an in-flight gate, so an autosave can never overlap a save
// already on the wire.
type Engine struct {
	api         DraftService
	notifier    notify.Notifier
	accountID   string
	fromAddress string

	// onSaved, when set, refreshes the caller's draft listing after a
	// successful save.
	onSaved     func(draftID string)
	onAuthError func(error)

	mu                   sync.Mutex
	sessionID            string
	buf                  Buffer
	draftID              string
	lastSavedFingerprint string
	saving               bool
	stopTimer            chan struct{}
	timerRunning         bool
}

// NewEngine creates a compose engine for one account. fromAddress is used
// as the sender when assembling the outgoing message.
func NewEngine(api DraftService, notifier notify.Notifier, accountID, fromAddress string) *Engine {
	return &Engine{
		api:         api,
		notifier:    notifier,
		accountID:   accountID,
		fromAddress: fromAddress,
		sessionID:   uuid.NewString(),
	}
}

// OnSaved registers a hook invoked with the draft id after each successful
// save, typically to refresh the draft listing.
func (e *Engine) OnSaved(fn func(draftID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onSaved = fn
}

// OnAuthError registers a handler for authentication failures.
func (e *Engine) OnAuthError(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAuthError = fn
}

// SetRecipients replaces the structured recipient lists.
func (e *Engine) SetRecipients(to, cc, bcc []contact.Contact) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.To = to
	e.buf.CC = cc
	e.buf.BCC = bcc
}

// SetSubject replaces the subject line.
func (e *Engine) SetSubject(subject string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.Subject = subject
}

// SetBody replaces the rich body content.
func (e *Engine) SetBody(bodyHTML string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.BodyHTML = bodyHTML
}

// AddAttachment adds a file to the session and returns its client-side id.
func (e *Engine) AddAttachment(filename, contentType string, content []byte) string {
	att := NewAttachment(filename, contentType, content)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.Attachments = append(e.buf.Attachments, att)
	return att.ID
}

// RemoveAttachment drops an attachment by its client-side id.
func (e *Engine) RemoveAttachment(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.buf.Attachments {
		if e.buf.Attachments[i].ID == id {
			e.buf.Attachments = append(e.buf.Attachments[:i], e.buf.Attachments[i+1:]...)
			return
		}
	}
}

// Buffer returns a snapshot of the compose buffer.
func (e *Engine) Buffer() Buffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf
}

// DraftID returns the backend-assigned draft id, or "" before first save.
func (e *Engine) DraftID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draftID
}

// StartAutosave starts the periodic save timer for this session. It is a
// no-op if the timer is already running.
func (e *Engine) StartAutosave(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}

	e.mu.Lock()
	if e.timerRunning {
		e.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	e.stopTimer = stop
	e.timerRunning = true
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
				if _, err := e.Save(ctx, false); err != nil {
					// The fingerprint still differs from the last
					// successful save, so the next tick retries.
					log.Printf("Compose: autosave failed: %v", err)
				}
				cancel()
			}
		}
	}()
}

// StopAutosave cancels the save timer. Safe to call from any exit path,
// repeatedly.
func (e *Engine) StopAutosave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
}

func (e *Engine) stopTimerLocked() {
	if e.timerRunning {
		close(e.stopTimer)
		e.timerRunning = false
	}
}

// Save persists the compose buffer if its content changed since the last
// successful save. It returns the draft id, or "" when nothing was or needed
// to be persisted.
//
// Order of guards: the fingerprint check first (unchanged content never
// touches the network), then the empty-draft guard (an all-empty buffer is
// never created remotely), then the in-flight gate.
func (e *Engine) Save(ctx context.Context, notifyUser bool) (string, error) {
	e.mu.Lock()

	fingerprint := e.buf.Fingerprint()
	if fingerprint == e.lastSavedFingerprint {
		id := e.draftID
		e.mu.Unlock()
		return id, nil
	}
	if e.buf.IsEmpty() {
		e.mu.Unlock()
		return "", nil
	}
	if e.saving {
		id := e.draftID
		e.mu.Unlock()
		return id, nil
	}

	session := e.sessionID
	draftID := e.draftID
	payload := e.buf.payload()
	e.saving = true
	e.mu.Unlock()

	var err error
	if draftID == "" {
		var draft *models.Draft
		draft, err = e.api.CreateDraft(ctx, e.accountID, payload)
		if err == nil {
			draftID = draft.ID
		}
	} else {
		err = e.api.UpdateDraft(ctx, e.accountID, draftID, payload)
	}

	e.mu.Lock()
	if e.sessionID != session {
		// Compose was closed while the save was on the wire; the buffer
		// this response belongs to no longer exists.
		e.mu.Unlock()
		return "", nil
	}
	e.saving = false

	if err != nil {
		onAuthError := e.onAuthError
		e.mu.Unlock()

		log.Printf("Compose: failed to save draft: %v", err)
		if restapi.IsAuthError(err) {
			if onAuthError != nil {
				onAuthError(err)
			}
		} else if notifyUser {
			e.notifier.Error("Failed to save draft")
		}
		return "", err
	}

	e.draftID = draftID
	e.lastSavedFingerprint = fingerprint
	onSaved := e.onSaved
	e.mu.Unlock()

	if notifyUser {
		e.notifier.Success("Draft saved")
	}
	if onSaved != nil {
		onSaved(draftID)
	}
	return draftID, nil
}

// Reset clears the session for a new message: stops the timer, discards the
// buffer, and forgets the draft identity and fingerprint. In-flight saves
// for the old session are ignored when they land.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTimerLocked()
	e.sessionID = uuid.NewString()
	e.buf = Buffer{}
	e.draftID = ""
	e.lastSavedFingerprint = ""
	e.saving = false
}

// Discard abandons the session, deleting the backend draft if one was
// created. The session is reset regardless of whether the delete succeeds.
func (e *Engine) Discard(ctx context.Context) error {
	e.mu.Lock()
	draftID := e.draftID
	e.mu.Unlock()

	var err error
	if draftID != "" {
		if err = e.api.DeleteDraft(ctx, e.accountID, draftID); err != nil {
			log.Printf("Compose: failed to delete draft %s: %v", draftID, err)
		}
	}

	e.Reset()
	return err
}

// Send assembles the buffer into a MIME message and submits it for
// delivery. On success the timer stops, the session's draft (if any) is
// deleted, and the session resets. On failure the session is left intact so
// the user can retry.
func (e *Engine) Send(ctx context.Context) error {
	e.mu.Lock()
	buf := e.buf
	draftID := e.draftID
	e.mu.Unlock()

	raw, err := BuildMIME(e.fromAddress, buf)
	if err != nil {
		e.notifier.Error("Message could not be assembled")
		return err
	}

	if err := e.api.SendMessage(ctx, e.accountID, raw); err != nil {
		log.Printf("Compose: failed to send message: %v", err)
		if restapi.IsAuthError(err) {
			e.mu.Lock()
			onAuthError := e.onAuthError
			e.mu.Unlock()
			if onAuthError != nil {
				onAuthError(err)
			}
		} else {
			e.notifier.Error("Failed to send message")
		}
		return err
	}

	if draftID != "" {
		if err := e.api.DeleteDraft(ctx, e.accountID, draftID); err != nil {
			// The message is already sent; a leftover draft is cosmetic.
			log.Printf("Compose: failed to delete draft %s after send: %v", draftID, err)
		}
	}

	e.Reset()
	e.notifier.Success("Message sent")
	return nil
}
