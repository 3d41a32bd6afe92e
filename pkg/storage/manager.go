package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Manager handles files under one root directory. Every write goes through a
// temporary file and a rename so readers never see a partial file.
type Manager struct {
	root string
}

// NewManager creates a new storage manager rooted at dir. The directory is
// created lazily on the first write.
func NewManager(dir string) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage directory is not set")
	}
	return &Manager{root: filepath.Clean(dir)}, nil
}

// Root returns the managed directory
func (m *Manager) Root() string {
	return m.root
}

// Path returns the full path of name inside the root
func (m *Manager) Path(name string) string {
	return filepath.Join(m.root, name)
}

// WriteAtomic replaces name with whatever write produces
func (m *Manager) WriteAtomic(name string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(m.root, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return WriteFileAtomic(m.Path(name), write)
}

// Read returns the contents of name. A missing file yields an error that
// satisfies os.IsNotExist.
func (m *Manager) Read(name string) ([]byte, error) {
	return os.ReadFile(m.Path(name))
}

// Exists checks if name exists
func (m *Manager) Exists(name string) bool {
	_, err := os.Stat(m.Path(name))
	return err == nil
}

// Stat returns file info for name
func (m *Manager) Stat(name string) (os.FileInfo, error) {
	return os.Stat(m.Path(name))
}

// Remove deletes name; a missing file is not an error
func (m *Manager) Remove(name string) error {
	if err := os.Remove(m.Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// List returns the names of regular files in the root with the given
// extension, sorted. A missing root yields an empty list.
func (m *Manager) List(ext string) ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ext {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// WriteFileAtomic writes path through path+".tmp", syncing before the rename.
// On any failure the temporary file is removed and path is left as it was.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	return WriteFileAtomicMode(path, 0644, write)
}

// WriteFileAtomicMode is WriteFileAtomic with explicit permissions
func WriteFileAtomicMode(path string, perm os.FileMode, write func(w io.Writer) error) error {
	tempPath := path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if err := write(file); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	return nil
}
