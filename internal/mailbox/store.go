package mailbox

import (
	"sync"

	"github.com/maildeck/maildeck/internal/models"
)

// CollectionKind names one of the store's two independently paginated email
// lists: AI-indexed emails (sorted by relevance/category) and not-yet-indexed
// emails (sorted by date). The two are merged only at the UI layer.
type CollectionKind int

const (
	CollectionIndexed CollectionKind = iota
	CollectionUnindexed
)

// Store holds the canonical in-memory email/thread lists for the active view
// plus the selection mirror (the currently open email). The mutation
// dispatcher and the pagination cursors both operate on it.
//
// Thread safety: all access goes through the mutex. Flat emails and threads
// are mutually exclusive per fetch; replacing one view clears the other.
type Store struct {
	mu         sync.RWMutex
	indexed    []models.Email
	unindexed  []models.Email
	threads    []models.Thread
	selectedID string
	selected   *models.Email
}

// NewStore creates an empty collection store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps the named email collection for a fresh page. Replacing the
// indexed collection leaves thread view (they are mutually exclusive).
func (s *Store) Replace(kind CollectionKind, emails []models.Email) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]models.Email, len(emails))
	copy(copied, emails)

	switch kind {
	case CollectionIndexed:
		s.indexed = copied
		s.threads = nil
	case CollectionUnindexed:
		s.unindexed = copied
	}
}

// Append adds a page of emails to the end of the named collection,
// preserving the server-determined order.
func (s *Store) Append(kind CollectionKind, emails []models.Email) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case CollectionIndexed:
		s.indexed = append(s.indexed, emails...)
	case CollectionUnindexed:
		s.unindexed = append(s.unindexed, emails...)
	}
}

// ReplaceThreads swaps the thread collection for a fresh page and leaves
// flat (indexed) view.
func (s *Store) ReplaceThreads(threads []models.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]models.Thread, len(threads))
	copy(copied, threads)
	s.threads = copied
	s.indexed = nil
}

// AppendThreads adds a page of threads to the end of the thread collection.
func (s *Store) AppendThreads(threads []models.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads = append(s.threads, threads...)
}

// Emails returns a copy of the named email collection.
func (s *Store) Emails(kind CollectionKind) []models.Email {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var src []models.Email
	switch kind {
	case CollectionIndexed:
		src = s.indexed
	case CollectionUnindexed:
		src = s.unindexed
	}

	out := make([]models.Email, len(src))
	copy(out, src)
	return out
}

// Threads returns a copy of the thread collection.
func (s *Store) Threads() []models.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Thread, len(s.threads))
	copy(out, s.threads)
	return out
}

// Len returns the number of items in the named email collection.
func (s *Store) Len(kind CollectionKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case CollectionIndexed:
		return len(s.indexed)
	case CollectionUnindexed:
		return len(s.unindexed)
	}
	return 0
}

// Get returns a snapshot of the email with the given id from either
// collection. The second return value reports whether it was found.
func (s *Store) Get(id string) (models.Email, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if email := s.findLocked(id); email != nil {
		return *email, true
	}
	return models.Email{}, false
}

// Update applies fn to the email with the given id in place, in whichever
// collection holds it, and mirrors the change onto the selection if the
// email is currently selected. Returns false if the email is not in view.
func (s *Store) Update(id string, fn func(*models.Email)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := s.findLocked(id)
	if email == nil {
		return false
	}
	fn(email)

	if s.selectedID == id && s.selected != nil {
		mirror := *email
		s.selected = &mirror
	}
	return true
}

// Remove deletes the email with the given id from its collection. If it was
// the selected email, the selection is cleared. Returns false if absent.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for _, list := range []*[]models.Email{&s.indexed, &s.unindexed} {
		for i := range *list {
			if (*list)[i].ID == id {
				*list = append((*list)[:i], (*list)[i+1:]...)
				removed = true
				break
			}
		}
		if removed {
			break
		}
	}

	if removed && s.selectedID == id {
		s.selectedID = ""
		s.selected = nil
	}
	return removed
}

// Select marks the email with the given id as the currently open one and
// mirrors its state. Returns false if the email is not in view.
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := s.findLocked(id)
	if email == nil {
		return false
	}
	mirror := *email
	s.selectedID = id
	s.selected = &mirror
	return true
}

// Selection returns a snapshot of the currently selected email, if any.
func (s *Store) Selection() (models.Email, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == nil {
		return models.Email{}, false
	}
	return *s.selected, true
}

// ClearSelection closes the detail view.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectedID = ""
	s.selected = nil
}

// findLocked returns a pointer into whichever collection holds the email.
// Callers must hold the mutex.
func (s *Store) findLocked(id string) *models.Email {
	for i := range s.indexed {
		if s.indexed[i].ID == id {
			return &s.indexed[i]
		}
	}
	for i := range s.unindexed {
		if s.unindexed[i].ID == id {
			return &s.unindexed[i]
		}
	}
	return nil
}
