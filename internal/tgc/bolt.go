package tgc

import (
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewBoltDB opens the session database. An empty path resolves to
// ~/.filestore/session.db, or a file next to the executable when the home
// directory is not usable.
func NewBoltDB(sessionFile string) (*bbolt.DB, error) {
	if sessionFile == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			dir = executableDir()
		} else {
			dir = filepath.Join(dir, ".filestore")
			if err := os.Mkdir(dir, 0755); err != nil && !os.IsExist(err) {
				dir = executableDir()
			}
		}
		sessionFile = filepath.Join(dir, "session.db")
	}
	return bbolt.Open(sessionFile, 0666, &bbolt.Options{
		Timeout:    time.Second,
		NoGrowSync: false,
	})
}
