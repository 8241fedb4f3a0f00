// Package findexec finds ELF binaries in a directory tree and groups them by owner.
//
// A Walker traverses the tree breadth-first with an explicit queue (or with
// fastwalk in parallel mode), applying name and owner exclusions and a
// Classifier to each regular file. An Aggregator then buckets the matches by
// numeric owner id, resolves each id to a username, and orders the groups by
// descending file count.
package findexec
