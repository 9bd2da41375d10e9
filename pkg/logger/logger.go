package logger

// Logger is what every component of the sync engine logs through.
type Logger interface {
	Log(format string, v ...interface{})
	SetPrefix(prefix string)
}
