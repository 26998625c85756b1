package pipeline

import "log/slog"

// Notifier receives lifecycle events. Notify must not block; the
// orchestrator never waits for observers.
type Notifier interface {
	Notify(event string, payload any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(event string, payload any)

func (f NotifierFunc) Notify(event string, payload any) { f(event, payload) }

// Notifiers fans an event out to every non-nil notifier in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(event string, payload any) {
	for _, n := range ns {
		if n != nil {
			n.Notify(event, payload)
		}
	}
}

// LogNotifier writes every event to the default logger.
type LogNotifier struct{}

func (LogNotifier) Notify(event string, payload any) {
	slog.Info("notify", "event", event, "payload", payload)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, any) {}
