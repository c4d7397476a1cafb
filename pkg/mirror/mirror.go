package mirror

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cuemby/zkbalancer/pkg/config"
)

// Entry is one mirrored document
type Entry struct {
	Key        string         `json:"key" yaml:"key"`
	Path       string         `json:"path" yaml:"path"`
	Document   map[string]any `json:"document" yaml:"document"`
	ModifiedAt time.Time      `json:"modified_at,omitempty" yaml:"modified_at,omitempty"`
}

// Mirror is an external key/value namespace holding one JSON document per
// artifact. Keys are artifact uuids.
type Mirror interface {
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// New creates the mirror backend selected by cfg. endpoints are used when
// cfg names none.
func New(cfg config.MirrorConfig, endpoints []string) (Mirror, error) {
	if len(cfg.Endpoints) > 0 {
		endpoints = cfg.Endpoints
	}
	root := cfg.RootPath
	if root == "" {
		root = "/demo/files"
	}

	switch cfg.Type {
	case "", config.MirrorNone:
		return NoopMirror{}, nil
	case config.MirrorZooKeeper:
		return NewZooKeeperMirror(endpoints, root, cfg.Timeout)
	case config.MirrorEtcd:
		return NewEtcdMirror(endpoints, root, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported mirror type: %s", cfg.Type)
	}
}

// keyPath joins a key under root, rejecting keys that would escape it
func keyPath(root, key string) (string, error) {
	if key == "" || strings.Contains(key, "/") {
		return "", fmt.Errorf("invalid mirror key %q", key)
	}
	return path.Join(root, key), nil
}

// NoopMirror discards every write and lists nothing
type NoopMirror struct{}

func (NoopMirror) Put(ctx context.Context, key string, data []byte) error { return nil }
func (NoopMirror) Delete(ctx context.Context, key string) error           { return nil }
func (NoopMirror) List(ctx context.Context) ([]Entry, error)              { return []Entry{}, nil }
func (NoopMirror) Close() error                                           { return nil }
