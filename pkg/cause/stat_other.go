//go:build !linux

package cause

import "os"

type fileStat struct {
	Inode  uint64
	Device uint64
	Size   int64
	Mode   uint32
	Atime  int64
	Mtime  int64
	Ctime  int64
}

// statFile falls back to os.Stat where inode data is not exposed
func statFile(path string) (fileStat, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStat{}, err
	}
	mtime := fi.ModTime().Unix()
	return fileStat{
		Size:  fi.Size(),
		Mode:  uint32(fi.Mode().Perm()),
		Atime: mtime,
		Mtime: mtime,
		Ctime: mtime,
	}, nil
}
