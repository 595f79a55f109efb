// Package cache defines the disk-backed store that maps instance files to
// StoragePath/instances/<instance>/<path> and cross-instance downloads to the
// flat StoragePath/cache/<sha256(url)> keyspace. Every write goes through a
// staging file + rename so readers never observe partial content, and entries
// of zero bytes are reported as absent. The engine depends on this package to
// serve local hits, import shared downloads and build directory listings
// without duplicating filesystem logic.
package cache
