package volume

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	// DefaultFilesPath is the base directory for per-node storage areas
	DefaultFilesPath = "./data/uploads"
)

var (
	// ErrSourceMissing is returned by Move when nothing exists at the
	// recorded location
	ErrSourceMissing = errors.New("source file missing")

	// ErrTargetExists is returned by Move when the target node already
	// stores a file under the same name
	ErrTargetExists = errors.New("target file already exists")
)

// Driver defines the interface for per-node artifact storage
type Driver interface {
	// NodePath returns the storage area of a node
	NodePath(node string) string

	// Put writes r into the node's storage area under name
	Put(node, name string, r io.Reader) (path string, size int64, err error)

	// Move relocates the file at path into the target node's storage area,
	// keeping its base name
	Move(path, targetNode string) (string, error)

	// Remove deletes the file at path; a missing file is not an error
	Remove(path string) error
}

// LocalDriver keeps every node's storage area as a directory under basePath
type LocalDriver struct {
	basePath string
}

// NewLocalDriver creates a new local storage driver
func NewLocalDriver(basePath string) (*LocalDriver, error) {
	if basePath == "" {
		basePath = DefaultFilesPath
	}

	// Ensure base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalDriver{
		basePath: basePath,
	}, nil
}

// NodePath returns the directory holding a node's files
func (d *LocalDriver) NodePath(node string) string {
	return filepath.Join(d.basePath, node)
}

// Put streams r into <basePath>/<node>/<name>
func (d *LocalDriver) Put(node, name string, r io.Reader) (string, int64, error) {
	dir := d.NodePath(node)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create node directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}
	return path, size, nil
}

// Move relocates a file into the target node's directory. It never
// replaces an existing file: a name already taken on the target fails with
// ErrTargetExists and leaves both files untouched. On a single filesystem
// the file is hard-linked then unlinked; otherwise it is copied into a new
// file and the source removed afterwards.
func (d *LocalDriver) Move(path, targetNode string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return "", fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source is a directory: %s", path)
	}

	dir := d.NodePath(targetNode)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create node directory: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(path))

	if _, err := os.Lstat(dest); err == nil {
		return "", fmt.Errorf("%w: %s", ErrTargetExists, dest)
	}

	if err := os.Link(path, dest); err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", ErrTargetExists, dest)
		}
		// No hard links across devices or on some filesystems
		if err := copyFile(path, dest, info.Mode()); err != nil {
			return "", err
		}
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to remove source after move: %w", err)
	}
	return dest, nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode.Perm())
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrTargetExists, dest)
		}
		return fmt.Errorf("failed to create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return out.Close()
}

// Remove deletes a stored file
func (d *LocalDriver) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}
