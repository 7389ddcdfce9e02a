package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"icloudalbum/internal/downloader"
	"icloudalbum/pkg/config"
	"icloudalbum/pkg/icloud"
	"icloudalbum/pkg/logger"
	"icloudalbum/pkg/manifest"
	"icloudalbum/pkg/models"
	"icloudalbum/pkg/ratelimit"
	"icloudalbum/pkg/storage"
	"icloudalbum/pkg/ui"
)

var (
	// Download command flags
	outputDir  string
	concurrent int
	rateLimit  int
	overwrite  bool
	noManifest bool
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <album>",
	Short: "Download every photo of an album",
	Long: `Download the best available derivative of every photo in an album.

Photos are saved to <output>/<album name>/ as <position>_<guid>_<caption>.<ext>,
with the extension taken from the file content. Photos already present in the
directory are skipped, so an interrupted download can simply be run again.
An album.json manifest describing the album and each saved file is written
alongside the photos.`,
	Example: `  # Download an album by share URL
  icloudalbum download 'https://www.icloud.com/sharedalbum/#B0z5qAGN1JIFd3y'

  # Download to a specific directory with more workers
  icloudalbum download B0z5qAGN1JIFd3y --output ./photos --concurrent 8

  # Re-download everything from a saved token
  icloudalbum download @holiday --overwrite`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&outputDir, "output", "o", "", "base directory for downloads (default from config)")
	downloadCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads (default from config)")
	downloadCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "maximum downloads started per minute (default from config)")
	downloadCmd.Flags().BoolVar(&overwrite, "overwrite", false, "download photos that are already present")
	downloadCmd.Flags().BoolVar(&noManifest, "no-manifest", false, "do not write album.json")
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := setup(map[string]interface{}{
		"output":              outputDir,
		"concurrent":          concurrent,
		"requests-per-minute": rateLimit,
		"overwrite":           overwrite,
		"no-manifest":         noManifest,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPrinter()

	token, album, client, err := fetchAlbum(ctx, cfg, args[0], icloud.FetchOptions{})
	if err != nil {
		return err
	}

	dir := filepath.Join(cfg.Download.OutputDirectory, albumDirName(album, token))
	p.Info("Album", displayName(album))
	p.Info("Photos", fmt.Sprintf("%d", len(album.Photos)))
	p.Info("Output", dir)
	if album.AssetURLsDegraded {
		p.Warning("Download URLs could not be resolved, only photos already on disk will be kept")
	}

	_, stats, err := downloadAlbum(ctx, client, album, token, dir, cfg.Download, p)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d photos failed to download", stats.Failed, stats.Total)
	}
	return nil
}

// downloadAlbum saves every photo of album into dir and records the outcome
// in the album manifest. The manifest is written even when ctx is cancelled
// so it reflects what reached the disk.
func downloadAlbum(ctx context.Context, client downloader.PhotoDownloader, album *models.Album, token, dir string, cfg config.DownloadConfig, p *ui.Printer) (*manifest.Manifest, downloader.Stats, error) {
	store, err := storage.NewManager(dir)
	if err != nil {
		return nil, downloader.Stats{}, err
	}

	log := logger.WithFields(map[string]interface{}{
		"album": displayName(album),
		"dir":   store.GetOutputDir(),
	})
	m := manifest.FromAlbum(album, token)
	progress := p.NewProgress(displayName(album), len(album.Photos))

	pool := downloader.NewPool(client, store, downloader.Options{
		Workers:   cfg.ConcurrentDownloads,
		Overwrite: cfg.OverwriteExisting,
		Limiter:   ratelimit.PerMinute(cfg.RequestsPerMinute),
		Logger:    log,
		OnResult: func(r downloader.Result) {
			if err := m.Record(r.Job.Photo.GUID, manifest.Download{
				Derivative: r.Derivative,
				File:       r.File,
				MIMEType:   r.MIMEType,
				Size:       int64(r.Size),
				Skipped:    r.Skipped,
				Err:        r.Error,
			}); err != nil {
				log.WithError(err).Warn("failed to record download")
			}

			switch {
			case r.Skipped:
				progress.Skipped()
			case r.Error != nil:
				progress.Failed(r.Job.Photo.GUID, r.Error)
			default:
				progress.Downloaded(int64(r.Size))
			}
		},
	})

	_, stats, runErr := pool.Run(ctx, album.Photos)
	progress.Finish()

	if cfg.WriteManifest {
		if err := writeManifest(store, m); err != nil {
			return m, stats, errors.Join(runErr, err)
		}
	}

	return m, stats, runErr
}

func writeManifest(store *storage.Manager, m *manifest.Manifest) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if _, err := store.WriteFile(manifest.FileName, data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// albumDirName is the album's sanitized name, or its token when unnamed
func albumDirName(album *models.Album, token string) string {
	if name := storage.SanitizeCaption(album.Metadata.StreamName); name != "" {
		return name
	}
	return token
}

func displayName(album *models.Album) string {
	if album.Metadata.StreamName != "" {
		return album.Metadata.StreamName
	}
	return album.Token
}
