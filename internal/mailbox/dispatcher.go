package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/maildeck/maildeck/internal/models"
	"github.com/maildeck/maildeck/internal/notify"
	"github.com/maildeck/maildeck/internal/restapi"
)

// ErrEmailNotFound is returned when a mutation targets an email that is not
// in the current view.
var ErrEmailNotFound = errors.New("email not found in current view")

// MutationService is the slice of the backend API the dispatcher needs.
type MutationService interface {
	Star(ctx context.Context, emailID string) error
	Unstar(ctx context.Context, emailID string) error
	Archive(ctx context.Context, emailID string) error
	Trash(ctx context.Context, emailID string) error
	MarkRead(ctx context.Context, emailID string) error
}

// Dispatcher applies optimistic flag mutations to the collection store,
// issues the corresponding remote call, and reconciles on success/failure.
//
// Mutations on the same email id are serialized through a per-id lock so
// rapid-fire toggles cannot interleave their snapshot/revert pairs.
// Mutations on distinct ids run independently.
type Dispatcher struct {
	store    *Store
	api      MutationService
	notifier notify.Notifier

	// onAuthError receives 401 failures; session expiry is a collaborator
	// concern, not something the dispatcher retries or toasts.
	onAuthError func(error)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDispatcher creates a mutation dispatcher over the given store.
func NewDispatcher(store *Store, api MutationService, notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{
		store:    store,
		api:      api,
		notifier: notifier,
		locks:    make(map[string]*sync.Mutex),
	}
}

// OnAuthError registers a handler for authentication failures (session
// expiry → logout). Without one, auth errors are only logged.
func (d *Dispatcher) OnAuthError(fn func(error)) {
	d.onAuthError = fn
}

// ToggleStar flips the star flag optimistically and reconciles with the
// backend. On failure the flag reverts to its pre-mutation value.
func (d *Dispatcher) ToggleStar(ctx context.Context, emailID string) error {
	unlock := d.lockEmail(emailID)
	defer unlock()

	snapshot, ok := d.store.Get(emailID)
	if !ok {
		return ErrEmailNotFound
	}

	starring := !snapshot.IsStarred
	d.store.Update(emailID, func(e *models.Email) { e.IsStarred = starring })

	var err error
	if starring {
		err = d.api.Star(ctx, emailID)
	} else {
		err = d.api.Unstar(ctx, emailID)
	}
	if err != nil {
		d.store.Update(emailID, func(e *models.Email) { e.IsStarred = snapshot.IsStarred })
		return d.fail("update star", err)
	}

	if starring {
		d.notifier.Success("Email starred")
	} else {
		d.notifier.Success("Star removed")
	}
	return nil
}

// Archive moves the email out of the active view. The archived flag is
// applied optimistically; the email leaves the collection (and the detail
// view, if it was selected) only once the backend confirms. On failure the
// flag reverts and the email stays in view.
func (d *Dispatcher) Archive(ctx context.Context, emailID string) error {
	return d.relocate(ctx, emailID, "archive",
		func(e *models.Email) { e.IsArchived = true },
		func(e *models.Email) { e.IsArchived = false },
		d.api.Archive,
		"Email archived")
}

// Trash moves the email to the trash, with the same optimistic/confirm
// discipline as Archive.
func (d *Dispatcher) Trash(ctx context.Context, emailID string) error {
	return d.relocate(ctx, emailID, "trash",
		func(e *models.Email) { e.IsTrashed = true },
		func(e *models.Email) { e.IsTrashed = false },
		d.api.Trash,
		"Email moved to trash")
}

// MarkRead marks the email as read. Marking an already-read email is an
// explicit no-op: no network call, no error. On failure the flag reverts.
func (d *Dispatcher) MarkRead(ctx context.Context, emailID string) error {
	unlock := d.lockEmail(emailID)
	defer unlock()

	snapshot, ok := d.store.Get(emailID)
	if !ok {
		return ErrEmailNotFound
	}
	if snapshot.IsRead {
		return nil
	}

	d.store.Update(emailID, func(e *models.Email) { e.IsRead = true })

	if err := d.api.MarkRead(ctx, emailID); err != nil {
		d.store.Update(emailID, func(e *models.Email) { e.IsRead = false })
		return d.fail("mark email read", err)
	}
	return nil
}

// relocate is the shared archive/trash path: snapshot, apply the location
// flag optimistically, confirm remotely, then remove from the active view.
func (d *Dispatcher) relocate(
	ctx context.Context,
	emailID, verb string,
	apply, revert func(*models.Email),
	call func(context.Context, string) error,
	successMessage string,
) error {
	unlock := d.lockEmail(emailID)
	defer unlock()

	if _, ok := d.store.Get(emailID); !ok {
		return ErrEmailNotFound
	}

	d.store.Update(emailID, apply)

	if err := call(ctx, emailID); err != nil {
		d.store.Update(emailID, revert)
		return d.fail(verb+" email", err)
	}

	d.store.Remove(emailID)
	d.notifier.Success(successMessage)
	return nil
}

// fail routes a remote failure: auth errors go to the session layer, every
// other failure is logged and surfaced as a toast. The error is returned so
// callers can branch, but nothing here is fatal.
func (d *Dispatcher) fail(action string, err error) error {
	log.Printf("Dispatcher: failed to %s: %v", action, err)

	if restapi.IsAuthError(err) {
		if d.onAuthError != nil {
			d.onAuthError(err)
		}
		return err
	}

	d.notifier.Error(fmt.Sprintf("Failed to %s", action))
	return err
}

// lockEmail returns an unlock function for the per-id mutation lock.
func (d *Dispatcher) lockEmail(emailID string) func() {
	d.mu.Lock()
	lock, ok := d.locks[emailID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[emailID] = lock
	}
	d.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
