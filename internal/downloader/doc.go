// Package downloader downloads every photo of a fetched album with bounded
// concurrency, a shared rate limiter and duplicate skipping by photo GUID.
package downloader
