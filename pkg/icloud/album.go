package icloud

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/logger"
	"icloudalbum/pkg/models"
	"icloudalbum/pkg/tokens"
)

// FetchOptions tunes a single FetchAlbum call
type FetchOptions struct {
	// SkipAssetURLs returns photos without resolving download URLs
	SkipAssetURLs bool
	// SkipRedirectProbe uses the partition URL as is
	SkipRedirectProbe bool
}

// FetchAlbum runs the whole pipeline for token: resolve the partition URL,
// probe for a redirect, fetch the album stream, then resolve and merge asset
// URLs. The two requests are strictly ordered since the second needs the
// photo identifiers from the first.
//
// A failed stream fetch is fatal. A rejected asset URL batch, or
// SkipAssetURLs, yields photos without URLs and sets AssetURLsDegraded.
func (c *Client) FetchAlbum(ctx context.Context, token string, opts FetchOptions) (*models.Album, error) {
	start := time.Now()
	log := c.logger.WithFields(map[string]interface{}{
		"fetch_id": uuid.NewString(),
		"token":    tokens.MaskToken(token),
	})

	baseURL, err := c.ResolveBaseURL(token)
	if err != nil {
		log.WithError(err).Error("failed to resolve partition")
		return nil, err
	}

	if !opts.SkipRedirectProbe {
		probed, err := c.ProbeRedirect(ctx, baseURL, token)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			log.WithError(err).Warn("redirect probe failed, using partition URL")
		} else {
			baseURL = probed
		}
	}

	stream, err := c.fetchStream(ctx, baseURL, log)
	if err != nil {
		return nil, err
	}

	album := &models.Album{
		Token:    token,
		Metadata: stream.Metadata,
		Photos:   stream.Photos,
		Warnings: stream.Warnings,
	}

	assigned := 0
	if opts.SkipAssetURLs {
		album.AssetURLsDegraded = true
	} else {
		assets, err := c.fetchAssetURLs(ctx, baseURL, album.GUIDs(), log)
		if err != nil {
			return nil, err
		}
		album.AssetURLsDegraded = assets.Degraded
		album.Warnings = append(album.Warnings, assets.Warnings...)
		assigned = Enrich(album.Photos, assets.URLs)
	}

	logger.LogMetrics(log, "fetch_album", map[string]interface{}{
		"base_url":            baseURL,
		"photos":              len(album.Photos),
		"items_returned":      album.Metadata.ItemsReturned,
		"urls_assigned":       assigned,
		"warnings":            len(album.Warnings),
		"asset_urls_degraded": album.AssetURLsDegraded,
		"duration_ms":         time.Since(start).Milliseconds(),
	})

	return album, nil
}

// FetchAlbum fetches token with a default client
func FetchAlbum(ctx context.Context, token string) (*models.Album, error) {
	return NewClient(DefaultOptions()).FetchAlbum(ctx, token, FetchOptions{})
}

// ErrorSummary is a compact description of a fetch failure for reporting
func ErrorSummary(err error) map[string]interface{} {
	summary := map[string]interface{}{
		"error":      err.Error(),
		"error_type": string(errs.TypeOf(err)),
	}
	if code := errs.StatusCode(err); code != 0 {
		summary["status_code"] = code
	}
	var exhausted *errs.RetryExhaustedError
	if errors.As(err, &exhausted) {
		summary["attempts"] = exhausted.Attempts
	}
	return summary
}
