//go:build linux

package cause

import "golang.org/x/sys/unix"

type fileStat struct {
	Inode  uint64
	Device uint64
	Size   int64
	Mode   uint32
	Atime  int64
	Mtime  int64
	Ctime  int64
}

func statFile(path string) (fileStat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fileStat{}, err
	}
	atime, _ := st.Atim.Unix()
	mtime, _ := st.Mtim.Unix()
	ctime, _ := st.Ctim.Unix()
	return fileStat{
		Inode:  uint64(st.Ino),
		Device: uint64(st.Dev),
		Size:   st.Size,
		Mode:   uint32(st.Mode),
		Atime:  atime,
		Mtime:  mtime,
		Ctime:  ctime,
	}, nil
}
