package kernel

import (
	"os"
	"path/filepath"
)

// DirTables reads kernel tables from the filesystem below a root directory.
// The host view is DirTables("/"); tests point it at a prepared tree.
type DirTables string

// HostTables returns the tables of the running system.
func HostTables() Tables {
	return DirTables("/")
}

func (d DirTables) path(p string) string {
	return filepath.Join(string(d), p)
}

func (d DirTables) ReadFile(p string) ([]byte, error) {
	return os.ReadFile(d.path(p))
}

// ReadDir returns the entry names of a directory in lexical order.
func (d DirTables) ReadDir(p string) ([]string, error) {
	entries, err := os.ReadDir(d.path(p))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (d DirTables) Exists(p string) bool {
	_, err := os.Stat(d.path(p))
	return err == nil
}
