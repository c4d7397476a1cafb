/*
Package volume stores artifact bytes in per-node storage areas.

Each configured node owns one directory under the base path:

	<files_dir>/
	├── zk1/
	│   └── 3f2a..._report.pdf
	├── zk2/
	└── zk3/

LocalDriver.Put streams an upload into a node directory and never overwrites
an existing file. LocalDriver.Move relocates a file into another node's
directory under the same base name with a single rename; when source and
target live on different filesystems it falls back to copy-then-remove.

Move returns ErrSourceMissing when nothing exists at the given path. That
means the record store and the disk disagree; callers surface it instead of
repairing it.
*/
package volume
