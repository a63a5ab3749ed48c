package compose

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildeck/maildeck/internal/contact"
	"github.com/maildeck/maildeck/internal/models"
)

// mockDraftService records draft operations and serves scripted results.
type mockDraftService struct {
	mu sync.Mutex

	createErr error
	updateErr error
	deleteErr error
	sendErr   error
	nextID    string

	creates  []models.DraftPayload
	updates  []models.DraftPayload
	updated  []string
	deleted  []string
	sentRaw  [][]byte
	sentAcct []string
}

func (m *mockDraftService) CreateDraft(_ context.Context, _ string, payload models.DraftPayload) (*models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.creates = append(m.creates, payload)
	id := m.nextID
	if id == "" {
		id = "draft-1"
	}
	return &models.Draft{ID: id}, nil
}

func (m *mockDraftService) UpdateDraft(_ context.Context, _ string, draftID string, payload models.DraftPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, payload)
	m.updated = append(m.updated, draftID)
	return nil
}

func (m *mockDraftService) DeleteDraft(_ context.Context, _ string, draftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, draftID)
	return nil
}

func (m *mockDraftService) SendMessage(_ context.Context, accountID string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sentAcct = append(m.sentAcct, accountID)
	m.sentRaw = append(m.sentRaw, raw)
	return nil
}

func (m *mockDraftService) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.creates) + len(m.updates)
}

type silentNotifier struct{}

func (silentNotifier) Success(string) {}
func (silentNotifier) Error(string)   {}

func newEngineFixture() (*Engine, *mockDraftService) {
	api := &mockDraftService{}
	engine := NewEngine(api, silentNotifier{}, "acct-1", "me@example.com")
	return engine, api
}

func TestEngine_SaveIsIdempotentOnUnchangedContent(t *testing.T) {
	engine, api := newEngineFixture()
	ctx := context.Background()

	engine.SetRecipients([]contact.Contact{{Address: "a@x.com"}}, nil, nil)
	engine.SetSubject("Hi")

	id1, err := engine.Save(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "draft-1", id1)

	// Second save with no buffer change must not touch the network.
	id2, err := engine.Save(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, api.writeCount(), "exactly one network write for unchanged content")
}

func TestEngine_EmptyBufferNeverCreatesDraft(t *testing.T) {
	engine, api := newEngineFixture()
	ctx := context.Background()

	id, err := engine.Save(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, 0, api.writeCount())

	// Whitespace-only content is still empty.
	engine.SetSubject("   ")
	engine.SetBody(" \n ")
	id, err = engine.Save(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, 0, api.writeCount())
}

func TestEngine_CreateThenUpdate(t *testing.T) {
	engine, api := newEngineFixture()
	ctx := context.Background()

	engine.SetRecipients([]contact.Contact{{Address: "a@x.com"}}, nil, nil)
	engine.SetSubject("Hi")
	engine.SetBody("<p>hi</p>")

	id, err := engine.Save(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "draft-1", id)
	require.Equal(t, "draft-1", engine.DraftID())

	// Edit: the next save must update the same draft, not create another.
	engine.SetSubject("Hi!")
	id, err = engine.Save(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "draft-1", id)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Len(t, api.creates, 1)
	require.Len(t, api.updated, 1)
	assert.Equal(t, "draft-1", api.updated[0])
}

func TestEngine_RevertingToEarlierContentStillSaves(t *testing.T) {
	engine, api := newEngineFixture()
	ctx := context.Background()

	engine.SetRecipients([]contact.Contact{{Address: "a@x.com"}}, nil, nil)
	engine.SetSubject("Hi")
	engine.SetBody("<p>hi</p>")

	_, err := engine.Save(ctx, false)
	require.NoError(t, err)

	engine.SetSubject("Hi!")
	_, err = engine.Save(ctx, false)
	require.NoError(t, err)

	// Back to the original subject: the fingerprint differs from the last
	// *successful* save ("Hi!"), so a third write must happen. Matching an
	// earlier save is not a reason to skip.
	engine.SetSubject("Hi")
	_, err = engine.Save(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 3, api.writeCount())
}

func TestEngine_FailedSaveRetriesOnNextTick(t *testing.T) {
	engine, api := newEngineFixture()
	ctx := context.Background()

	engine.SetSubject("Hi")
	api.createErr = errors.New("backend down")

	_, err := engine.Save(ctx, false)
	require.Error(t, err)
	assert.Empty(t, engine.DraftID())

	// The fingerprint was not advanced, so the next save retries the write.
	api.mu.Lock()
	api.createErr = nil
	api.mu.Unlock()

	id, err := engine.Save(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "draft-1", id)
}

func TestEngine_AttachmentMetadataInFingerprintAndPayload(t *testing.T) {
	engine, api := newEngineFixture()
	ctx := context.Background()

	engine.SetSubject("Report")
	_, err := engine.Save(ctx, false)
	require.NoError(t, err)

	// Adding an attachment changes the fingerprint even though recipients,
	// subject, and body are untouched.
	attID := engine.AddAttachment("report.pdf", "application/pdf", []byte("%PDF-1.4"))
	_, err = engine.Save(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 2, api.writeCount())

	api.mu.Lock()
	payload := api.updates[0]
	api.mu.Unlock()
	require.Len(t, payload.Attachments, 1)
	assert.Equal(t, "report.pdf", payload.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", payload.Attachments[0].ContentType)

	// Removing it changes the fingerprint again.
	engine.RemoveAttachment(attID)
	_, err = engine.Save(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, api.writeCount())
}

func TestEngine_ResetClearsSessionState(t *testing.T) {
	engine, api := newEngineFixture()
	ctx := context.Background()

	engine.SetSubject("Hi")
	_, err := engine.Save(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "draft-1", engine.DraftID())

	engine.Reset()

	assert.Empty(t, engine.DraftID())
	buf := engine.Buffer()
	assert.True(t, buf.IsEmpty())

	// A new session with the same content creates a fresh draft rather
	// than updating the abandoned one.
	api.mu.Lock()
	api.nextID = "draft-2"
	api.mu.Unlock()
	engine.SetSubject("Hi")
	id, err := engine.Save(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "draft-2", id)
}

func TestEngine_SaveLandingAfterResetIsIgnored(t *testing.T) {
	api := &mockDraftService{}
	blocked := make(chan struct{})
	slow := &slowDraftService{
		mockDraftService: api,
		release:          blocked,
		called:           make(chan struct{}),
	}
	engine := NewEngine(slow, silentNotifier{}, "acct-1", "me@example.com")

	engine.SetSubject("Hi")

	done := make(chan struct{})
	go func() {
		_, _ = engine.Save(context.Background(), false)
		close(done)
	}()

	// Close compose while the save is on the wire.
	slow.waitUntilCalled()
	engine.Reset()
	close(blocked)
	<-done

	assert.Empty(t, engine.DraftID(), "a response for a closed session must be dropped")
}

// slowDraftService blocks CreateDraft until released, to simulate a save
// still on the wire.
type slowDraftService struct {
	*mockDraftService
	release <-chan struct{}
	called  chan struct{}
	once    sync.Once
}

func (s *slowDraftService) CreateDraft(ctx context.Context, accountID string, payload models.DraftPayload) (*models.Draft, error) {
	s.once.Do(func() {
		if s.called != nil {
			close(s.called)
		}
	})
	<-s.release
	return s.mockDraftService.CreateDraft(ctx, accountID, payload)
}

func (s *slowDraftService) waitUntilCalled() {
	// CreateDraft closes s.called on first invocation.
	if s.called != nil {
		<-s.called
	}
}

func TestEngine_AutosaveTimerLifecycle(t *testing.T) {
	engine, api := newEngineFixture()

	engine.SetRecipients([]contact.Contact{{Address: "a@x.com"}}, nil, nil)
	engine.SetSubject("Hi")
	engine.StartAutosave(10 * time.Millisecond)

	require.Eventually(t, func() bool {
		return engine.DraftID() != ""
	}, time.Second, 5*time.Millisecond, "autosave tick must persist the draft")

	engine.StopAutosave()
	engine.StopAutosave() // stopping twice is safe

	writes := api.writeCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, writes, api.writeCount(), "no saves after the timer stops")
}

func TestEngine_Discard(t *testing.T) {
	engine, api := newEngineFixture()
	ctx := context.Background()

	engine.SetSubject("Hi")
	_, err := engine.Save(ctx, false)
	require.NoError(t, err)

	require.NoError(t, engine.Discard(ctx))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.deleted, 1)
	assert.Equal(t, "draft-1", api.deleted[0])
	assert.Empty(t, engine.DraftID())
}

func TestEngine_DiscardWithoutDraftSkipsDelete(t *testing.T) {
	engine, api := newEngineFixture()

	require.NoError(t, engine.Discard(context.Background()))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Empty(t, api.deleted)
}

func TestEngine_SendDeletesDraftAndResets(t *testing.T) {
	engine, api := newEngineFixture()
	ctx := context.Background()

	engine.SetRecipients([]contact.Contact{{Address: "a@x.com", DisplayName: "A"}}, nil, nil)
	engine.SetSubject("Hi")
	engine.SetBody("<p>hi</p>")
	engine.StartAutosave(time.Hour)

	_, err := engine.Save(ctx, false)
	require.NoError(t, err)

	require.NoError(t, engine.Send(ctx))

	api.mu.Lock()
	sent := len(api.sentRaw)
	deleted := len(api.deleted)
	api.mu.Unlock()
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, deleted, "the session draft is deleted after send")
	assert.Empty(t, engine.DraftID())
	buf := engine.Buffer()
	assert.True(t, buf.IsEmpty())
}

func TestEngine_SendFailureLeavesSessionIntact(t *testing.T) {
	engine, api := newEngineFixture()
	ctx := context.Background()

	engine.SetRecipients([]contact.Contact{{Address: "a@x.com"}}, nil, nil)
	engine.SetSubject("Hi")
	api.sendErr = errors.New("smtp refused")

	require.Error(t, engine.Send(ctx))

	assert.Equal(t, "Hi", engine.Buffer().Subject, "buffer survives a failed send for retry")
}

func TestEngine_SendWithoutRecipients(t *testing.T) {
	engine, _ := newEngineFixture()

	engine.SetSubject("Hi")
	err := engine.Send(context.Background())
	assert.ErrorIs(t, err, ErrNoRecipients)
}
