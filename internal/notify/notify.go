package notify

import "log"

// Notifier is the toast collaborator: user-facing success/failure messages
// emitted by mailbox mutations and draft saves. The UI layer supplies a real
// implementation; the core never depends on how messages are rendered.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// LogNotifier writes notifications to the process log. Used by the daemon
// and as a default when no UI is attached.
type LogNotifier struct{}

func (LogNotifier) Success(message string) {
	log.Printf("Notify: %s", message)
}

func (LogNotifier) Error(message string) {
	log.Printf("Notify: error: %s", message)
}
