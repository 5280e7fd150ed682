//go:build !unix

package systeminfo

import "errors"

func statStorage(string) (capacity, avail uint64, err error) {
	return 0, 0, errors.ErrUnsupported
}
