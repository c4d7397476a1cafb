package mirror

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/rs/zerolog"
)

// Replicator publishes artifact metadata to a Mirror. Writes are
// best-effort: failures are logged and never returned, so a mirror outage
// cannot fail an upload or a migration.
type Replicator struct {
	mirror Mirror
	logger zerolog.Logger
	now    func() time.Time
}

// NewReplicator wraps m. A nil m behaves like NoopMirror.
func NewReplicator(m Mirror) *Replicator {
	if m == nil {
		m = NoopMirror{}
	}
	return &Replicator{
		mirror: m,
		logger: log.WithComponent("mirror"),
		now:    time.Now,
	}
}

// Document is the mirrored representation of an artifact
func (r *Replicator) Document(a *types.Artifact) map[string]any {
	history := a.History
	if history == nil {
		history = []types.HistoryEvent{}
	}
	return map[string]any{
		"id":         a.ID,
		"uuid":       a.UUID,
		"filename":   a.Filename,
		"size":       a.SizeBytes,
		"node":       a.Node,
		"path":       a.Path,
		"history":    history,
		"created_at": a.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": r.now().UTC().Format(time.RFC3339Nano),
	}
}

// PublishArtifact writes the artifact's current metadata under its uuid
func (r *Replicator) PublishArtifact(ctx context.Context, a *types.Artifact) {
	logger := r.logger.With().Uint64("artifact_id", a.ID).Str("uuid", a.UUID).Logger()

	data, err := json.Marshal(r.Document(a))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode mirror document")
		return
	}
	if err := r.mirror.Put(ctx, a.UUID, data); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish artifact metadata")
		return
	}
	logger.Debug().Str("node", a.Node).Msg("Published artifact metadata")
}

// DeleteArtifact removes the artifact's mirrored metadata
func (r *Replicator) DeleteArtifact(ctx context.Context, a *types.Artifact) {
	if err := r.mirror.Delete(ctx, a.UUID); err != nil {
		logger := r.logger.With().Uint64("artifact_id", a.ID).Str("uuid", a.UUID).Logger()
		logger.Warn().Err(err).Msg("Failed to delete artifact metadata")
	}
}

// List returns the mirrored documents. Unlike writes, listing errors are
// returned to the caller.
func (r *Replicator) List(ctx context.Context) ([]Entry, error) {
	return r.mirror.List(ctx)
}

// Close closes the underlying mirror
func (r *Replicator) Close() error {
	return r.mirror.Close()
}

// decodeDocument parses a stored document; undecodable bytes are kept raw
func decodeDocument(data []byte) map[string]any {
	doc := map[string]any{}
	if len(data) == 0 {
		return doc
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string]any{"raw": string(data)}
	}
	return doc
}
