//go:build unix

package systeminfo

import "golang.org/x/sys/unix"

func statStorage(root string) (capacity, avail uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return 0, 0, err
	}
	bsz := uint64(st.Bsize)
	return uint64(st.Blocks) * bsz, uint64(st.Bavail) * bsz, nil
}
