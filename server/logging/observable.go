package logging

import (
	"bytes"
	"sync"
)

// ObservableLogger fans every written log line out to its subscribers.
// Slow subscribers miss lines instead of stalling the logger.
type ObservableLogger struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewObservableLogger() *ObservableLogger {
	return &ObservableLogger{subs: make(map[chan []byte]struct{})}
}

func (o *ObservableLogger) Write(p []byte) (int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if len(o.subs) == 0 {
		return len(p), nil
	}

	line := bytes.Clone(p)
	for ch := range o.subs {
		select {
		case ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Subscribe returns a channel of log lines and a function that releases it.
func (o *ObservableLogger) Subscribe(buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, buffer)

	o.mu.Lock()
	o.subs[ch] = struct{}{}
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, ch)
			o.mu.Unlock()
			close(ch)
		})
	}
}
