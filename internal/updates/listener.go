package updates

import (
	"context"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// EventType classifies a mailbox event pushed by the backend.
type EventType string

const (
	// EventNewMail signals new mail in a folder; consumers should reload
	// the first page of the affected view.
	EventNewMail EventType = "new_mail"
	// EventSyncComplete signals a backend sync finished.
	EventSyncComplete EventType = "sync_complete"
)

// Event is one message from the backend's realtime channel.
type Event struct {
	Type   EventType `json:"type"`
	Folder string    `json:"folder,omitempty"`
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Listener maintains a WebSocket connection to the backend's update
// endpoint and surfaces decoded events on a channel. The bearer credential
// travels as a query parameter, since browsers (and this endpoint) cannot
// use headers on WebSocket connections.
type Listener struct {
	wsURL  string
	token  string
	dialer *websocket.Dialer
	events chan Event
}

// NewListener creates a listener for the given ws:// or wss:// endpoint.
func NewListener(wsURL, token string) *Listener {
	return &Listener{
		wsURL:  wsURL,
		token:  token,
		dialer: websocket.DefaultDialer,
		events: make(chan Event, 16),
	}
}

// Events returns the channel on which decoded events arrive. It is closed
// when Run returns.
func (l *Listener) Events() <-chan Event {
	return l.events
}

// Run connects, reads events, and reconnects with exponential backoff until
// the context is cancelled. It blocks; run it in its own goroutine.
func (l *Listener) Run(ctx context.Context) {
	defer close(l.events)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := l.dial(ctx)
		if err != nil {
			log.Printf("Updates: connection failed: %v (retrying in %s)", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = initialBackoff
		l.readLoop(ctx, conn)

		if ctx.Err() != nil {
			return
		}
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := url.Parse(l.wsURL)
	if err != nil {
		return nil, err
	}
	query := endpoint.Query()
	query.Set("token", l.token)
	endpoint.RawQuery = query.Encode()

	conn, resp, err := l.dialer.DialContext(ctx, endpoint.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// readLoop decodes events until the connection drops or the context is
// cancelled. A cancelled context closes the connection to unblock the read.
func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() == nil {
				log.Printf("Updates: read failed, reconnecting: %v", err)
			}
			return
		}
		if event.Type == "" {
			continue
		}

		select {
		case l.events <- event:
		default:
			// Drop rather than block: a slow consumer will catch up on the
			// next reload anyway.
		}
	}
}
