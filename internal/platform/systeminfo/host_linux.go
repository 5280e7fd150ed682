//go:build linux

package systeminfo

import "golang.org/x/sys/unix"

func readMemory() (total, avail uint64, err error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, 0, err
	}
	unit := uint64(si.Unit)
	if unit == 0 {
		unit = 1
	}
	return uint64(si.Totalram) * unit, (uint64(si.Freeram) + uint64(si.Bufferram)) * unit, nil
}
