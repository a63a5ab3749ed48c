package mailbox

import (
	"context"
	"sync"

	"github.com/maildeck/maildeck/internal/models"
	"github.com/maildeck/maildeck/internal/restapi"
)

// Filters are the inputs that scope a paginated listing. Changing any of
// them must route through LoadFirstPage, never LoadMore.
type Filters struct {
	Folder    string
	Category  string
	Search    string
	AccountID string
	// ThreadView switches the indexed cursor to thread listings. Flat and
	// thread views are mutually exclusive per fetch.
	ThreadView bool
}

// ListService is the slice of the backend API the cursors need.
type ListService interface {
	ListEmails(ctx context.Context, q restapi.ListQuery) (*models.EmailPage, error)
	ListThreads(ctx context.Context, q restapi.ListQuery) (*models.ThreadPage, error)
	ListUnindexed(ctx context.Context, q restapi.ListQuery) (*models.EmailPage, error)
}

// pageResult is one fetched page, not yet applied to the store. apply is
// deferred so a response that arrives after the cursor moved on (filter
// change, newer load) can be discarded without touching the collection.
type pageResult struct {
	count   int
	hasMore bool
	apply   func(replace bool)
}

type fetchFunc func(ctx context.Context, filters Filters, offset, limit int) (pageResult, error)

// Cursor tracks offset/limit/has-more state for one independently paginated
// view. Offset advances by the number of items actually returned, never by
// the requested limit, so short pages don't skip items.
type Cursor struct {
	mu         sync.Mutex
	limit      int
	offset     int
	hasMore    bool
	inFlight   bool
	generation int
	filters    Filters
	fetch      fetchFunc
}

// NewIndexedCursor creates the cursor for the AI-indexed view. It fetches
// flat emails, or threads when Filters.ThreadView is set, replacing or
// appending into the store's indexed collection.
func NewIndexedCursor(store *Store, api ListService, limit int) *Cursor {
	c := newCursor(limit)
	c.fetch = func(ctx context.Context, filters Filters, offset, limit int) (pageResult, error) {
		q := restapi.ListQuery{
			Limit:     limit,
			Offset:    offset,
			Folder:    filters.Folder,
			Category:  filters.Category,
			Search:    filters.Search,
			AccountID: filters.AccountID,
		}

		if filters.ThreadView {
			page, err := api.ListThreads(ctx, q)
			if err != nil {
				return pageResult{}, err
			}
			return pageResult{
				count: len(page.Threads),
				// The thread listing reports no has_more flag; derive it
				// from the total.
				hasMore: offset+len(page.Threads) < page.Total,
				apply: func(replace bool) {
					if replace {
						store.ReplaceThreads(page.Threads)
					} else {
						store.AppendThreads(page.Threads)
					}
				},
			}, nil
		}

		page, err := api.ListEmails(ctx, q)
		if err != nil {
			return pageResult{}, err
		}
		return pageResult{
			count:   len(page.Emails),
			hasMore: page.HasMore,
			apply: func(replace bool) {
				if replace {
					store.Replace(CollectionIndexed, page.Emails)
				} else {
					store.Append(CollectionIndexed, page.Emails)
				}
			},
		}, nil
	}
	return c
}

// NewUnindexedCursor creates the cursor for the not-yet-indexed view,
// paginating into the store's unindexed collection.
func NewUnindexedCursor(store *Store, api ListService, limit int) *Cursor {
	c := newCursor(limit)
	c.fetch = func(ctx context.Context, filters Filters, offset, limit int) (pageResult, error) {
		page, err := api.ListUnindexed(ctx, restapi.ListQuery{
			Limit:     limit,
			Offset:    offset,
			Folder:    filters.Folder,
			Search:    filters.Search,
			AccountID: filters.AccountID,
		})
		if err != nil {
			return pageResult{}, err
		}
		return pageResult{
			count:   len(page.Emails),
			hasMore: page.HasMore,
			apply: func(replace bool) {
				if replace {
					store.Replace(CollectionUnindexed, page.Emails)
				} else {
					store.Append(CollectionUnindexed, page.Emails)
				}
			},
		}, nil
	}
	return c
}

func newCursor(limit int) *Cursor {
	if limit <= 0 || limit > restapi.MaxPageLimit {
		limit = restapi.MaxPageLimit
	}
	return &Cursor{limit: limit}
}

// LoadFirstPage resets the cursor to offset 0 with the given filters,
// fetches the first page, and replaces the accumulated list. It supersedes
// any load still in flight: a stale response is ignored when it lands.
func (c *Cursor) LoadFirstPage(ctx context.Context, filters Filters) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.filters = filters
	c.offset = 0
	c.hasMore = false
	c.inFlight = true
	limit := c.limit
	c.mu.Unlock()

	result, err := c.fetch(ctx, filters, 0, limit)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		// A newer load took over while this one was on the wire.
		return nil
	}
	c.inFlight = false
	if err != nil {
		return err
	}

	result.apply(true)
	c.offset = result.count
	c.hasMore = result.hasMore
	return nil
}

// LoadMore fetches the next page at the current offset and appends it. It is
// a no-op when a load is already in flight or when the server reported no
// more items, so duplicate-offset requests cannot produce duplicate rows.
func (c *Cursor) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	c.inFlight = true
	filters := c.filters
	offset := c.offset
	limit := c.limit
	c.mu.Unlock()

	result, err := c.fetch(ctx, filters, offset, limit)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		// Filters changed while this page was on the wire; the new first
		// page owns the collection now.
		return nil
	}
	c.inFlight = false
	if err != nil {
		return err
	}

	result.apply(false)
	c.offset += result.count
	c.hasMore = result.hasMore
	return nil
}

// Offset returns the number of items accumulated so far.
func (c *Cursor) Offset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// HasMore reports whether the server indicated further pages.
func (c *Cursor) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}
