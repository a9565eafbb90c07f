//go:build !unix

package transport

import "errors"

func FreeSpace(dir string) (uint64, error) { return 0, errors.ErrUnsupported }

// Free space is only probed on unix systems.
func checkFreeSpace(dir string, size int64) error { return nil }
