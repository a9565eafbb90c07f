//go:build unix

package transport

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FreeSpace reports the bytes available to unprivileged users in dir.
func FreeSpace(dir string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}

func checkFreeSpace(dir string, size int64) error {
	free, err := FreeSpace(dir)
	if err != nil {
		return fmt.Errorf("checking free space: %w", err)
	}
	if uint64(size) > free {
		return fmt.Errorf("%w: need %d bytes, %d available in %s", ErrInsufficientSpace, size, free, dir)
	}
	return nil
}
