package storage

import (
	"errors"
	"os"
)

// ErrWouldBlock signals that a non-blocking lock attempt failed because
// another process holds the lock.
var ErrWouldBlock = errors.New("file lock would block")

// releaseFileLock releases the lock and removes the lock file.
func releaseFileLock(lockFile *os.File) error {
	if lockFile == nil {
		return nil
	}
	path := lockFile.Name()
	unlockFile(lockFile)

	err1 := lockFile.Close()
	err2 := os.Remove(path)
	if os.IsNotExist(err2) {
		err2 = nil
	}
	return errors.Join(err1, err2)
}
