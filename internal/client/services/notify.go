package services

// NotificationKind is the severity of a user-facing message.
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindInfo    NotificationKind = "info"
	KindWarning NotificationKind = "warning"
	KindError   NotificationKind = "error"
)

// Notifier shows short messages to the user.
type Notifier interface {
	Notify(kind NotificationKind, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind NotificationKind, message string)

func (f NotifierFunc) Notify(kind NotificationKind, message string) { f(kind, message) }

type nopNotifier struct{}

func (nopNotifier) Notify(NotificationKind, string) {}
