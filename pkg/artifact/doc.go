// Package artifact ingests files into per-node storage areas, creates their
// records and keeps the metadata mirror and operations log in step.
//
// Automatic placement picks the configured node holding the fewest
// artifacts, skipping drained nodes; ties go to the earlier configured node.
// Pinned uploads go to the named node regardless of drain state.
package artifact
