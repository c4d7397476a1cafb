package mirror

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdMirror stores one key per artifact under a key prefix
type EtcdMirror struct {
	client  *clientv3.Client
	root    string
	timeout time.Duration
}

// NewEtcdMirror creates an etcd-backed mirror
func NewEtcdMirror(endpoints []string, root string, timeout time.Duration) (*EtcdMirror, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("etcd mirror requires at least one endpoint")
	}
	if timeout <= 0 {
		timeout = 2500 * time.Millisecond
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &EtcdMirror{
		client:  client,
		root:    path.Clean("/" + strings.Trim(root, "/")),
		timeout: timeout,
	}, nil
}

// Put stores data under key
func (m *EtcdMirror) Put(ctx context.Context, key string, data []byte) error {
	p, err := keyPath(m.root, key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.client.Put(ctx, p, string(data)); err != nil {
		return fmt.Errorf("failed to store %s in etcd: %w", p, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *EtcdMirror) Delete(ctx context.Context, key string) error {
	p, err := keyPath(m.root, key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.client.Delete(ctx, p); err != nil {
		return fmt.Errorf("failed to delete %s from etcd: %w", p, err)
	}
	return nil
}

// List returns every direct child of the root prefix, sorted by key
func (m *EtcdMirror) List(ctx context.Context) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	prefix := m.root + "/"
	resp, err := m.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s from etcd: %w", m.root, err)
	}

	entries := make([]Entry, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		key := strings.TrimPrefix(string(kv.Key), prefix)
		if key == "" || strings.Contains(key, "/") {
			continue
		}
		entries = append(entries, Entry{
			Key:      key,
			Path:     string(kv.Key),
			Document: decodeDocument(kv.Value),
		})
	}
	return entries, nil
}

// Close closes the client
func (m *EtcdMirror) Close() error {
	return m.client.Close()
}
