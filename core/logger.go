package core

// Logger is any service that can log application events.
// expected args: error, map[string]interface{}, or the acting user's ID as Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the user an event is logged for.
type Person struct {
	ID       string
	Username string
}
