//go:build !unix

package storage

import (
	"errors"
	"fmt"
	"os"
)

// acquireFileLock creates path exclusively. A stale lock file left by a crash
// must be removed by hand.
var acquireFileLock = func(path string) (*os.File, error) {
	lockFile, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrWouldBlock
		}
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	return lockFile, nil
}

func unlockFile(*os.File) {}
