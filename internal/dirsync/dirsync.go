// Package dirsync implements one-way directory-to-container sync.
//
// A sync runs in three phases: scan the local tree, probe each candidate's
// remote properties to detect changes, then upload the changed files with
// bounded concurrency. Unchanged files are skipped without transferring any
// bytes; the stored content digest makes the comparison exact.
package dirsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
)

// ProbeFunc looks up the remote properties for a key. A nil result with a
// nil error means the blob does not exist.
type ProbeFunc func(ctx context.Context, key string) (*blobtypes.BlobProperties, error)

// UploadFunc uploads one local file to a key.
type UploadFunc func(ctx context.Context, path, key string) (*blobtypes.UploadResult, error)

// Config carries everything a sync run needs.
type Config struct {
	// FS is the filesystem holding the local tree
	FS fs.Filesystem

	// Root is the local directory to sync from
	Root string

	// Prefix is prepended to every destination key
	Prefix string

	// Probe looks up remote blob properties
	Probe ProbeFunc

	// Upload transfers one file
	Upload UploadFunc

	// Include and Exclude filter the scanned tree by glob pattern
	Include []string
	Exclude []string

	// Concurrency bounds the number of in-flight probe+upload workers
	Concurrency int

	// DryRun plans without uploading
	DryRun bool

	// Compare selects the change-detection strategy
	Compare blobtypes.CompareMode

	// Logger receives debug traces; nil disables logging
	Logger *slog.Logger
}

// Sync runs a one-way sync of cfg.Root into the remote namespace under
// cfg.Prefix. Per-file failures are collected in the result rather than
// aborting the run; only a failed scan, invalid patterns, or context
// cancellation return an error.
func Sync(ctx context.Context, cfg Config) (*blobtypes.SyncResult, error) {
	start := time.Now()

	if err := validatePatterns(cfg.Include); err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	if err := validatePatterns(cfg.Exclude); err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}

	entries, err := scan(ctx, cfg.FS, cfg.Root, cfg.Prefix, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}

	if cfg.Logger != nil {
		cfg.Logger.Debug("sync scan complete",
			slog.String("root", cfg.Root),
			slog.Int("files", len(entries)))
	}

	result := &blobtypes.SyncResult{}
	run := &runner{cfg: cfg, cmp: newComparator(cfg.Compare, cfg.FS), result: result}
	if err := run.process(ctx, entries); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

// runner holds the shared state of one sync run. The result is guarded by
// mu; workers only touch it through the record helpers.
type runner struct {
	cfg    Config
	cmp    comparator
	mu     sync.Mutex
	result *blobtypes.SyncResult
}

// process fans entries out to a bounded worker pool. Slot acquisition
// respects context cancellation so a stuck transfer cannot wedge the pool.
func (r *runner) process(ctx context.Context, entries []Entry) error {
	concurrency := r.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = blobtypes.DefaultConcurrency
	}
	slots := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for _, entry := range entries {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}

		wg.Add(1)
		go func(entry Entry) {
			defer func() {
				<-slots
				wg.Done()
			}()
			r.syncOne(ctx, entry)
		}(entry)
	}
	wg.Wait()

	return ctx.Err()
}

// syncOne probes, compares, and (outside dry runs) uploads a single file.
func (r *runner) syncOne(ctx context.Context, entry Entry) {
	remote, err := r.cfg.Probe(ctx, entry.Key)
	if err != nil {
		r.recordError(entry, fmt.Errorf("probe: %w", err))
		return
	}

	reason := "new file"
	if remote != nil {
		changed, why, err := r.cmp.changed(entry, remote)
		if err != nil {
			r.recordError(entry, fmt.Errorf("compare: %w", err))
			return
		}
		if !changed {
			r.recordSkip()
			return
		}
		reason = why
	}

	if r.cfg.DryRun {
		r.recordPlanned(entry, reason)
		return
	}

	if r.cfg.Logger != nil {
		r.cfg.Logger.Debug("sync upload",
			slog.String("path", entry.Path),
			slog.String("key", entry.Key),
			slog.String("reason", reason))
	}

	uploaded, err := r.cfg.Upload(ctx, entry.Path, entry.Key)
	if err != nil {
		r.recordError(entry, err)
		return
	}
	r.recordUpload(uploaded.Size)
}

func (r *runner) recordSkip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Skipped++
}

func (r *runner) recordPlanned(entry Entry, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Planned = append(r.result.Planned, blobtypes.SyncAction{
		Path:   entry.Path,
		Key:    entry.Key,
		Size:   entry.Size,
		Reason: reason,
	})
}

func (r *runner) recordUpload(bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Uploaded++
	r.result.BytesUploaded += bytes
}

func (r *runner) recordError(entry Entry, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Failed++
	r.result.Errors = append(r.result.Errors, blobtypes.SyncError{
		Path: entry.Path,
		Key:  entry.Key,
		Err:  err,
	})
}
