// Package redis offers a shared Redis-backed cache for chain status
// snapshots, letting several gateway processes reuse one node read.
package redis
