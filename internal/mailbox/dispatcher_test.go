package mailbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildeck/maildeck/internal/models"
	"github.com/maildeck/maildeck/internal/restapi"
)

// mockMutationService is a scriptable MutationService for dispatcher tests.
type mockMutationService struct {
	starErr     error
	unstarErr   error
	archiveErr  error
	trashErr    error
	markReadErr error

	starCalls     int
	unstarCalls   int
	archiveCalls  int
	trashCalls    int
	markReadCalls int
}

func (m *mockMutationService) Star(context.Context, string) error {
	m.starCalls++
	return m.starErr
}

func (m *mockMutationService) Unstar(context.Context, string) error {
	m.unstarCalls++
	return m.unstarErr
}

func (m *mockMutationService) Archive(context.Context, string) error {
	m.archiveCalls++
	return m.archiveErr
}

func (m *mockMutationService) Trash(context.Context, string) error {
	m.trashCalls++
	return m.trashErr
}

func (m *mockMutationService) MarkRead(context.Context, string) error {
	m.markReadCalls++
	return m.markReadErr
}

// recordingNotifier captures toast messages for assertions.
type recordingNotifier struct {
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(message string) { n.successes = append(n.successes, message) }
func (n *recordingNotifier) Error(message string)   { n.errors = append(n.errors, message) }

func newDispatcherFixture(emails ...models.Email) (*Dispatcher, *Store, *mockMutationService, *recordingNotifier) {
	store := NewStore()
	store.Replace(CollectionIndexed, emails)
	api := &mockMutationService{}
	notifier := &recordingNotifier{}
	return NewDispatcher(store, api, notifier), store, api, notifier
}

func TestDispatcher_ToggleStar(t *testing.T) {
	ctx := context.Background()

	t.Run("stars an unstarred email", func(t *testing.T) {
		dispatcher, store, api, notifier := newDispatcherFixture(models.Email{ID: "e1"})

		require.NoError(t, dispatcher.ToggleStar(ctx, "e1"))

		email, _ := store.Get("e1")
		assert.True(t, email.IsStarred)
		assert.Equal(t, 1, api.starCalls)
		assert.Equal(t, 0, api.unstarCalls)
		assert.Len(t, notifier.successes, 1)
	})

	t.Run("unstars a starred email", func(t *testing.T) {
		dispatcher, store, api, _ := newDispatcherFixture(models.Email{ID: "e1", IsStarred: true})

		require.NoError(t, dispatcher.ToggleStar(ctx, "e1"))

		email, _ := store.Get("e1")
		assert.False(t, email.IsStarred)
		assert.Equal(t, 1, api.unstarCalls)
	})

	t.Run("reverts the flag when the remote call fails", func(t *testing.T) {
		dispatcher, store, api, notifier := newDispatcherFixture(models.Email{ID: "e1"})
		api.starErr = errors.New("network down")

		err := dispatcher.ToggleStar(ctx, "e1")
		require.Error(t, err)

		email, _ := store.Get("e1")
		assert.False(t, email.IsStarred, "flag must revert to its pre-mutation value")
		assert.Len(t, notifier.errors, 1, "failure must be surfaced to the user")
	})

	t.Run("mirrors the optimistic change onto the selection", func(t *testing.T) {
		dispatcher, store, _, _ := newDispatcherFixture(models.Email{ID: "e1"})
		store.Select("e1")

		require.NoError(t, dispatcher.ToggleStar(ctx, "e1"))

		selected, found := store.Selection()
		require.True(t, found)
		assert.True(t, selected.IsStarred)
	})

	t.Run("errors when the email is not in view", func(t *testing.T) {
		dispatcher, _, api, _ := newDispatcherFixture()

		err := dispatcher.ToggleStar(ctx, "missing")
		assert.ErrorIs(t, err, ErrEmailNotFound)
		assert.Equal(t, 0, api.starCalls, "no remote call for unknown emails")
	})
}

func TestDispatcher_Archive(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the email from view and clears selection on success", func(t *testing.T) {
		dispatcher, store, _, notifier := newDispatcherFixture(
			models.Email{ID: "e1"}, models.Email{ID: "e2"},
		)
		store.Select("e1")

		require.NoError(t, dispatcher.Archive(ctx, "e1"))

		_, found := store.Get("e1")
		assert.False(t, found, "archived email must leave the active collection")
		_, selected := store.Selection()
		assert.False(t, selected, "selection must be cleared")
		assert.Equal(t, 1, store.Len(CollectionIndexed))
		assert.Len(t, notifier.successes, 1)
	})

	t.Run("keeps the email in view when the remote call fails", func(t *testing.T) {
		dispatcher, store, api, notifier := newDispatcherFixture(models.Email{ID: "e1"})
		api.archiveErr = errors.New("server error")

		err := dispatcher.Archive(ctx, "e1")
		require.Error(t, err)

		email, found := store.Get("e1")
		assert.True(t, found, "email must stay in view after a failed archive")
		assert.False(t, email.IsArchived, "location flag must revert")
		assert.Len(t, notifier.errors, 1)
	})
}

func TestDispatcher_Trash(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the email on success", func(t *testing.T) {
		dispatcher, store, api, _ := newDispatcherFixture(models.Email{ID: "e1"})

		require.NoError(t, dispatcher.Trash(ctx, "e1"))

		_, found := store.Get("e1")
		assert.False(t, found)
		assert.Equal(t, 1, api.trashCalls)
	})

	t.Run("restores the location flag on failure", func(t *testing.T) {
		dispatcher, store, api, _ := newDispatcherFixture(models.Email{ID: "e1"})
		api.trashErr = errors.New("timeout")

		require.Error(t, dispatcher.Trash(ctx, "e1"))

		email, found := store.Get("e1")
		assert.True(t, found)
		assert.False(t, email.IsTrashed)
	})
}

func TestDispatcher_MarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("marks an unread email read", func(t *testing.T) {
		dispatcher, store, api, _ := newDispatcherFixture(models.Email{ID: "e1"})

		require.NoError(t, dispatcher.MarkRead(ctx, "e1"))

		email, _ := store.Get("e1")
		assert.True(t, email.IsRead)
		assert.Equal(t, 1, api.markReadCalls)
	})

	t.Run("already-read email is a no-op without a network call", func(t *testing.T) {
		dispatcher, _, api, _ := newDispatcherFixture(models.Email{ID: "e1", IsRead: true})

		require.NoError(t, dispatcher.MarkRead(ctx, "e1"))
		assert.Equal(t, 0, api.markReadCalls)
	})

	t.Run("reverts on failure", func(t *testing.T) {
		dispatcher, store, api, _ := newDispatcherFixture(models.Email{ID: "e1"})
		api.markReadErr = errors.New("nope")

		require.Error(t, dispatcher.MarkRead(ctx, "e1"))

		email, _ := store.Get("e1")
		assert.False(t, email.IsRead)
	})
}

func TestDispatcher_AuthErrorRoutesToSessionLayer(t *testing.T) {
	dispatcher, _, api, notifier := newDispatcherFixture(models.Email{ID: "e1"})
	api.starErr = &restapi.AuthError{Operation: "POST /emails/e1/star"}

	var sessionErr error
	dispatcher.OnAuthError(func(err error) { sessionErr = err })

	err := dispatcher.ToggleStar(context.Background(), "e1")
	require.Error(t, err)

	assert.Error(t, sessionErr, "401 must reach the session layer")
	assert.Empty(t, notifier.errors, "auth failures are not toasted")
}
