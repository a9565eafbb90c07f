package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotableLogger is a file writer that can move the current file aside and
// start a fresh one.
type RotableLogger struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	now    func() time.Time
	rename func(oldpath, newpath string) error
}

func NewRotableLogger(path string) (*RotableLogger, error) {
	l := &RotableLogger{path: path, now: time.Now, rename: os.Rename}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *RotableLogger) open() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

func (l *RotableLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Write(p)
}

// Rotate renames the current file to <name>.<date>.<ext> and reopens path.
// Empty files are kept as they are. On failure path is reopened, so the
// logger keeps writing to the current file.
func (l *RotableLogger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return errors.Join(err, l.open())
	}
	if err := l.rename(l.path, l.rotatedName()); err != nil {
		return errors.Join(err, l.open())
	}
	return l.open()
}

func (l *RotableLogger) rotatedName() string {
	ext := filepath.Ext(l.path)
	base := strings.TrimSuffix(l.path, ext)
	name := fmt.Sprintf("%s.%s%s", base, l.now().Format("2006-01-02T15-04-05"), ext)

	// several rotations within the same second
	for i := 1; ; i++ {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s.%s.%d%s", base, l.now().Format("2006-01-02T15-04-05"), i, ext)
	}
}

func (l *RotableLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
