/*
Package mirror replicates artifact metadata into an external key/value
namespace so other tools can discover where each file lives.

Each artifact is stored as one JSON document keyed by its uuid under a root
path (default /demo/files):

	/demo/files/3f0c...e1  {"id":7,"uuid":"3f0c...e1","filename":"a.bin","node":"zk2",...}

Backends:
  - ZooKeeperMirror: one znode per artifact, parents created on demand
  - EtcdMirror: one key per artifact under the root prefix
  - NoopMirror: discards writes

Replicator wraps a backend for the upload and migration paths. Its writes
are best-effort: a failed publish is logged and the calling operation still
succeeds.
*/
package mirror
