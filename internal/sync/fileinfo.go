package sync

import (
	"os"
	"syscall"
	"time"

	"github.com/turbopuffer/turbogrep/internal/walker"
)

// defaultFileInfoOf reads f's content and derives mtime/ctime from the
// OS, the production implementation of fileInfoOf.
func defaultFileInfoOf(f walker.File) (fileContents, error) {
	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return fileContents{}, err
	}
	info, err := os.Stat(f.AbsPath)
	if err != nil {
		return fileContents{}, err
	}

	mtime := info.ModTime()
	ctime := mtime
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		ctime = time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
	}

	return fileContents{content: content, mtime: mtime, ctime: ctime}, nil
}
