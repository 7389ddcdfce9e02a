package icloud

import (
	"context"
	"errors"
	"net/http"

	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/logger"
	"icloudalbum/pkg/retry"
	"icloudalbum/pkg/schema"
)

var assetURLRules = schema.Rules{
	Endpoint: AssetURLsEndpoint,
	Requirements: []schema.Requirement{
		{Field: "items", Kind: schema.KindObject, Severity: schema.Required},
	},
}

// assetRequest is the webasseturls payload
type assetRequest struct {
	PhotoGUIDs []string `json:"photoGuids"`
}

// AssetURLs is the decoded webasseturls response
type AssetURLs struct {
	// URLs maps derivative checksum to download URL
	URLs map[string]string
	// Degraded is set when the service rejected the batch and URLs is empty
	Degraded bool
	Warnings []errs.ValidationIssue
	Stats    retry.Stats
}

// FetchAssetURLs resolves download URLs for every derivative of the given
// photos. No request is sent for an empty guid list. A 400 response means the
// service rejected the batch; it yields an empty, degraded result instead of
// an error.
func (c *Client) FetchAssetURLs(ctx context.Context, baseURL string, guids []string) (*AssetURLs, error) {
	return c.fetchAssetURLs(ctx, baseURL, guids, c.logger)
}

func (c *Client) fetchAssetURLs(ctx context.Context, baseURL string, guids []string, log logger.Logger) (*AssetURLs, error) {
	if len(guids) == 0 {
		return &AssetURLs{URLs: map[string]string{}}, nil
	}

	url := EndpointURL(baseURL, AssetURLsEndpoint)
	cfg := c.retryConfig(AssetURLsEndpoint, log)
	cfg.Classify = func(err error) retry.Action {
		if errs.StatusCode(err) == http.StatusBadRequest {
			return retry.ActionDegrade
		}
		return c.policy.Classify(err)
	}

	result, stats, err := retry.Do(ctx, cfg, func(ctx context.Context) (*AssetURLs, error) {
		ex, err := c.postJSON(ctx, url, assetRequest{PhotoGUIDs: guids})
		if err != nil {
			return nil, err
		}
		if err := checkStatus(url, ex); err != nil {
			return nil, err
		}
		return parseAssetURLs(ex.body, log)
	})
	if err != nil {
		log.WithError(err).ErrorWithFields("failed to fetch asset URLs", map[string]interface{}{
			"url":        url,
			"photos":     len(guids),
			"attempts":   stats.Attempts,
			"error_type": string(errs.TypeOf(err)),
		})
		return nil, err
	}

	if stats.Degraded {
		log.WarnWithFields("asset URL batch rejected, continuing without URLs", map[string]interface{}{
			"photos": len(guids),
		})
		return &AssetURLs{URLs: map[string]string{}, Degraded: true, Stats: stats}, nil
	}

	result.Stats = stats
	return result, nil
}

// parseAssetURLs validates a webasseturls body. A missing or malformed items
// mapping is fatal; individual malformed items are skipped.
func parseAssetURLs(body []byte, log logger.Logger) (*AssetURLs, error) {
	obj, err := schema.ParseObject(AssetURLsEndpoint, body)
	if err != nil {
		return nil, err
	}

	sctx := schema.NewContext(AssetURLsEndpoint, log)
	if err := schema.Validate(sctx, obj, assetURLRules); err != nil {
		return nil, err
	}

	items, err := schema.Extract(sctx, obj, "items", schema.Required, schema.ObjectOf, nil)
	if err != nil {
		return nil, err
	}

	itemsCtx := sctx.Field("items")
	urls := make(map[string]string, len(items))
	for checksum, raw := range items {
		ictx := itemsCtx.Field(checksum)
		url, err := parseAssetItem(ictx, raw)
		if err != nil {
			ictx.Skip(err)
			continue
		}
		urls[checksum] = url
	}

	return &AssetURLs{URLs: urls, Warnings: sctx.Warnings()}, nil
}

func parseAssetItem(ctx *schema.Context, raw []byte) (string, error) {
	obj, err := schema.ObjectOf(raw)
	if err != nil {
		return "", err
	}
	location, err := schema.Extract(ctx, obj, "url_location", schema.Required, schema.String, "")
	if err != nil {
		return "", err
	}
	path, err := schema.Extract(ctx, obj, "url_path", schema.Required, schema.String, "")
	if err != nil {
		return "", err
	}
	if location == "" {
		return "", errors.New("empty url_location")
	}
	return "https://" + location + path, nil
}
