package core

// Logger is any service that can log leveled, structured-ish messages.
// Args may carry errors, maps or a logged-in user depending on the impl.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
