package logger

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

// BaseLogger пишет строки вида "<время> [Компонент] сообщение" в writer.
// Если writer не задан, сообщения уходят в стандартный log.
type BaseLogger struct {
	mu     *sync.Mutex
	prefix string
	writer io.Writer
	now    func() time.Time
}

func NewLogger(writer io.Writer, prefix string) *BaseLogger {
	return &BaseLogger{
		mu:     &sync.Mutex{},
		writer: writer,
		prefix: prefix,
		now:    time.Now,
	}
}

func (l *BaseLogger) Log(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	message := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		message = l.prefix + " " + message
	}
	if l.writer == nil {
		log.Print(message)
		return
	}
	fmt.Fprintf(l.writer, "%s %s\n", l.now().Format("2006/01/02 15:04:05"), message)
}

// WithPrefix returns a child logger sharing the writer and its lock,
// so lines from concurrent components never interleave.
func (l *BaseLogger) WithPrefix(extraPrefix string) *BaseLogger {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := extraPrefix
	if l.prefix != "" {
		prefix = l.prefix + " " + extraPrefix
	}
	return &BaseLogger{
		mu:     l.mu,
		writer: l.writer,
		prefix: prefix,
		now:    l.now,
	}
}

func (l *BaseLogger) SetPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix = prefix
}

func (l *BaseLogger) SetWriter(writer io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = writer
}
