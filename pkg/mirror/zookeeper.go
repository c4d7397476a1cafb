package mirror

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/samuel/go-zookeeper/zk"
)

// maxInflight bounds calls still running against the ensemble, including
// ones whose caller already gave up
const maxInflight = 4

// ZooKeeperMirror stores one znode per key under a root path
type ZooKeeperMirror struct {
	conn     *zk.Conn
	root     string
	timeout  time.Duration
	inflight chan struct{}
}

// NewZooKeeperMirror connects to the ensemble. The session is established in
// the background; operations wait for it up to timeout.
func NewZooKeeperMirror(servers []string, root string, timeout time.Duration) (*ZooKeeperMirror, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("zookeeper mirror requires at least one server")
	}
	if timeout <= 0 {
		timeout = 2500 * time.Millisecond
	}

	conn, _, err := zk.Connect(servers, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}
	conn.SetLogger(log.NewPrinter("zookeeper"))

	return &ZooKeeperMirror{
		conn:     conn,
		root:     path.Clean("/" + strings.Trim(root, "/")),
		timeout:  timeout,
		inflight: make(chan struct{}, maxInflight),
	}, nil
}

// do runs fn bounded by the mirror timeout and ctx. The client library has
// no context support, so an abandoned call finishes in the background and
// keeps its inflight slot until then. With every slot taken, do fails
// without starting fn.
func (m *ZooKeeperMirror) do(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	select {
	case m.inflight <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("zookeeper operation not started, %d calls still pending: %w", cap(m.inflight), ctx.Err())
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-m.inflight }()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("zookeeper operation timed out: %w", ctx.Err())
	}
}

// ensurePath creates p and its parents layer by layer
func (m *ZooKeeperMirror) ensurePath(p string) error {
	current := "/"
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		exists, _, err := m.conn.Exists(current)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		_, err = m.conn.Create(current, []byte{}, 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return err
		}
	}
	return nil
}

// Put creates or overwrites the znode for key
func (m *ZooKeeperMirror) Put(ctx context.Context, key string, data []byte) error {
	p, err := keyPath(m.root, key)
	if err != nil {
		return err
	}

	return m.do(ctx, func() error {
		if err := m.ensurePath(m.root); err != nil {
			return fmt.Errorf("failed to ensure %s: %w", m.root, err)
		}
		exists, _, err := m.conn.Exists(p)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", p, err)
		}
		if !exists {
			_, err = m.conn.Create(p, data, 0, zk.WorldACL(zk.PermAll))
			if err == nil {
				return nil
			}
			if !errors.Is(err, zk.ErrNodeExists) {
				return fmt.Errorf("failed to create %s: %w", p, err)
			}
		}
		if _, err := m.conn.Set(p, data, -1); err != nil {
			return fmt.Errorf("failed to set %s: %w", p, err)
		}
		return nil
	})
}

// Delete removes the znode for key. A missing znode is not an error.
func (m *ZooKeeperMirror) Delete(ctx context.Context, key string) error {
	p, err := keyPath(m.root, key)
	if err != nil {
		return err
	}

	return m.do(ctx, func() error {
		err := m.conn.Delete(p, -1)
		if err != nil && !errors.Is(err, zk.ErrNoNode) {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
		return nil
	})
}

// List returns every child of the root path, sorted by key
func (m *ZooKeeperMirror) List(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}
	err := m.do(ctx, func() error {
		children, _, err := m.conn.Children(m.root)
		if errors.Is(err, zk.ErrNoNode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", m.root, err)
		}
		sort.Strings(children)

		for _, child := range children {
			p := path.Join(m.root, child)
			data, stat, err := m.conn.Get(p)
			if errors.Is(err, zk.ErrNoNode) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", p, err)
			}
			entries = append(entries, Entry{
				Key:        child,
				Path:       p,
				Document:   decodeDocument(data),
				ModifiedAt: time.UnixMilli(stat.Mtime).UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close ends the session
func (m *ZooKeeperMirror) Close() error {
	m.conn.Close()
	return nil
}
