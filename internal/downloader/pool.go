package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/icloud"
	"icloudalbum/pkg/logger"
	"icloudalbum/pkg/models"
	"icloudalbum/pkg/ratelimit"
	"icloudalbum/pkg/storage"
)

// Job is one photo to download, with its position in the album
type Job struct {
	Index int
	Photo models.Photo
}

// Result is the outcome of one Job
type Result struct {
	Job        Job
	File       string
	Derivative string
	MIMEType   string
	Size       int
	Skipped    bool
	Error      error
	Duration   time.Duration
}

// PhotoDownloader fetches the best derivative of a photo
type PhotoDownloader interface {
	DownloadPhoto(ctx context.Context, photo models.Photo) (*icloud.Download, error)
}

// PhotoStorage persists downloaded photos
type PhotoStorage interface {
	IsDownloaded(guid string) bool
	FileFor(guid string) (string, bool)
	Save(r io.Reader, guid, name string) (string, error)
}

// Options configures a Pool
type Options struct {
	Workers   int
	Overwrite bool
	Limiter   ratelimit.Limiter
	Logger    logger.Logger
	// OnResult is called once per job as it finishes, from worker goroutines
	OnResult func(Result)
}

// Pool downloads the photos of an album with bounded concurrency
type Pool struct {
	workers   int
	overwrite bool
	client    PhotoDownloader
	storage   PhotoStorage
	limiter   ratelimit.Limiter
	logger    logger.Logger
	onResult  func(Result)
}

// NewPool creates a download pool
func NewPool(client PhotoDownloader, store PhotoStorage, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}
	return &Pool{
		workers:   opts.Workers,
		overwrite: opts.Overwrite,
		client:    client,
		storage:   store,
		limiter:   opts.Limiter,
		logger:    logger.OrDefault(opts.Logger).WithField("component", "downloader"),
		onResult:  opts.OnResult,
	}
}

// Stats summarises a Run
type Stats struct {
	Total      int
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
	Duration   time.Duration
}

// Run downloads every photo and returns one Result per photo in album
// order. A failed photo does not stop the others; Run only returns an error
// when ctx is cancelled, together with the results gathered so far.
func (p *Pool) Run(ctx context.Context, photos []models.Photo) ([]Result, Stats, error) {
	start := time.Now()
	results := make([]Result, len(photos))

	p.logger.InfoWithFields("Starting downloads", map[string]interface{}{
		"photos":  len(photos),
		"workers": p.workers,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	var mu sync.Mutex
	for i, photo := range photos {
		job := Job{Index: i, Photo: photo}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result := p.process(gctx, job)

			mu.Lock()
			results[job.Index] = result
			mu.Unlock()

			if p.onResult != nil {
				p.onResult(result)
			}
			if result.Error != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	stats := Stats{Total: len(photos), Duration: time.Since(start)}
	for _, r := range results {
		switch {
		case r.Skipped:
			stats.Skipped++
		case r.Error != nil:
			stats.Failed++
		case r.File != "":
			stats.Downloaded++
			stats.Bytes += int64(r.Size)
		}
	}

	logger.LogMetrics(p.logger, "download_album", map[string]interface{}{
		"total":       stats.Total,
		"downloaded":  stats.Downloaded,
		"skipped":     stats.Skipped,
		"failed":      stats.Failed,
		"bytes":       stats.Bytes,
		"duration_ms": stats.Duration.Milliseconds(),
	})

	return results, stats, err
}

// process handles a single job
func (p *Pool) process(ctx context.Context, job Job) Result {
	start := time.Now()
	guid := job.Photo.GUID
	result := Result{Job: job}
	log := p.logger.WithFields(map[string]interface{}{
		"photo_guid": guid,
		"position":   job.Index + 1,
	})

	if !p.overwrite && p.storage.IsDownloaded(guid) {
		result.Skipped = true
		result.File, _ = p.storage.FileFor(guid)
		result.Duration = time.Since(start)
		log.Debug("Photo already downloaded")
		return result
	}

	if err := p.limiter.Wait(ctx); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	dl, err := p.client.DownloadPhoto(ctx, job.Photo)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)
		log.WithError(err).ErrorWithFields("Failed to download photo", map[string]interface{}{
			"error_type": string(errs.TypeOf(err)),
			"duration":   result.Duration,
		})
		return result
	}

	result.Derivative = dl.Key
	result.MIMEType = dl.MIMEType
	result.Size = len(dl.Data)

	name := storage.FileName(job.Index, guid, job.Photo.Caption, dl.Extension)
	if _, err := p.storage.Save(bytes.NewReader(dl.Data), guid, name); err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)
		log.WithError(err).ErrorWithFields("Failed to save photo", map[string]interface{}{
			"file": name,
			"size": result.Size,
		})
		return result
	}

	result.File = name
	result.Duration = time.Since(start)
	log.DebugWithFields("Photo saved", map[string]interface{}{
		"file":     name,
		"size":     result.Size,
		"duration": result.Duration,
	})
	return result
}
