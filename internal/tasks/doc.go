// package tasks implements the batch operations of a music directory.
//
// The core abstractions are Downloader, which materializes playlist
// declarations into the content-addressed cache with bounded
// concurrency, and Collector, which removes cache entries no longer
// referenced by any playlist. Operations emit progress updates via
// channels for non-blocking status reporting to CLI/UI layers, and
// never abort a batch for a single item's failure.
package tasks
