package core

// Logger is the application logger.
//
// args may hold an error, key/value pairs (string key followed by its value)
// and at most one user.User, which is reported as the person concerned.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
