// Package blob provides a chunked transfer client for blob store services.
//
// The client splits uploads and downloads into fixed-size chunks moved by a
// bounded pool of concurrent workers, with per-chunk retry, optional
// primary/secondary failover for reads, and end-to-end content digests.
// Block-oriented blobs are committed atomically from an ordered block list;
// page-oriented blobs are created at full length and written as aligned
// ranges, skipping all-zero chunks entirely. SyncDir mirrors a local
// directory into a container, uploading only files whose stored content
// digest no longer matches.
//
// Basic usage:
//
//	client, err := blob.New(
//	    blob.WithEndpoint("https://store.example.com"),
//	    blob.WithToken(token),
//	    blob.WithConcurrency(8),
//	)
//	if err != nil {
//	    return err
//	}
//
//	result, err := client.Upload(ctx, "backups", "2024/data.bin", file, size,
//	    blob.WithProgress(tracker),
//	)
package blob
