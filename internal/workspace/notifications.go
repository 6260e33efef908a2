package workspace

import "time"

// Level is the severity of a Notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const maxNotifications = 50

// Notification is a user-facing message produced by a workspace operation. Clients
// drain them and render them however they like.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// notifyLocked queues a message, dropping the oldest past the cap. Caller holds w.mu.
func (w *Workspace) notifyLocked(level Level, msg string) {
	w.notifications = append(w.notifications, Notification{Level: level, Message: msg, At: time.Now().UTC()})
	if over := len(w.notifications) - maxNotifications; over > 0 {
		w.notifications = append([]Notification(nil), w.notifications[over:]...)
	}
}

func (w *Workspace) notify(level Level, msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notifyLocked(level, msg)
}

// DrainNotifications returns and clears the pending messages.
func (w *Workspace) DrainNotifications() []Notification {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.notifications
	w.notifications = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}
