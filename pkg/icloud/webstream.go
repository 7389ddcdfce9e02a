package icloud

import (
	"context"
	"encoding/json"
	"fmt"

	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/logger"
	"icloudalbum/pkg/models"
	"icloudalbum/pkg/retry"
	"icloudalbum/pkg/schema"
)

var webstreamRules = schema.Rules{
	Endpoint: WebstreamEndpoint,
	Requirements: []schema.Requirement{
		{Field: "photos", Kind: schema.KindArray, Severity: schema.Required},
		{Field: "streamCtag", Kind: schema.KindString, Severity: schema.Required},
		{Field: "streamName", Kind: schema.KindString, Severity: schema.Optional},
		{Field: "userFirstName", Kind: schema.KindString, Severity: schema.Optional},
		{Field: "userLastName", Kind: schema.KindString, Severity: schema.Optional},
		{Field: "itemsReturned", Kind: schema.KindNumberOrString, Severity: schema.Optional},
		{Field: "locations", Kind: schema.KindAny, Severity: schema.Lenient},
	},
}

// Stream is the decoded webstream response
type Stream struct {
	Metadata models.AlbumMetadata
	Photos   []models.Photo
	Warnings []errs.ValidationIssue
	Stats    retry.Stats
}

// FetchStream retrieves album metadata and the photo list from baseURL
func (c *Client) FetchStream(ctx context.Context, baseURL string) (*Stream, error) {
	return c.fetchStream(ctx, baseURL, c.logger)
}

func (c *Client) fetchStream(ctx context.Context, baseURL string, log logger.Logger) (*Stream, error) {
	url := EndpointURL(baseURL, WebstreamEndpoint)

	stream, stats, err := retry.Do(ctx, c.retryConfig(WebstreamEndpoint, log), func(ctx context.Context) (*Stream, error) {
		ex, err := c.postJSON(ctx, url, streamRequest{})
		if err != nil {
			return nil, err
		}
		if err := checkStatus(url, ex); err != nil {
			return nil, err
		}
		return parseWebstream(ex.body, log)
	})
	if err != nil {
		log.WithError(err).ErrorWithFields("failed to fetch album stream", map[string]interface{}{
			"url":        url,
			"attempts":   stats.Attempts,
			"error_type": string(errs.TypeOf(err)),
		})
		return nil, err
	}

	stream.Stats = stats
	return stream, nil
}

// parseWebstream validates and maps a webstream body. Malformed photos are
// skipped and recorded as warnings.
func parseWebstream(body []byte, log logger.Logger) (*Stream, error) {
	obj, err := schema.ParseObject(WebstreamEndpoint, body)
	if err != nil {
		return nil, err
	}

	sctx := schema.NewContext(WebstreamEndpoint, log)
	if err := schema.Validate(sctx, obj, webstreamRules); err != nil {
		return nil, err
	}

	metadata, hasCount, err := parseMetadata(sctx, obj)
	if err != nil {
		return nil, err
	}

	rawPhotos, err := schema.Extract(sctx, obj, "photos", schema.Required, schema.ArrayOf, nil)
	if err != nil {
		return nil, err
	}

	photosCtx := sctx.Field("photos")
	photos := make([]models.Photo, 0, len(rawPhotos))
	seen := make(map[string]bool, len(rawPhotos))
	for i, raw := range rawPhotos {
		pctx := photosCtx.Index(i)
		photo, err := parsePhoto(pctx, raw)
		if err != nil {
			pctx.Skip(err)
			continue
		}
		if seen[photo.GUID] {
			pctx.Skip(fmt.Errorf("duplicate photoGuid %s", photo.GUID))
			continue
		}
		seen[photo.GUID] = true
		photos = append(photos, photo)
	}

	if hasCount && int64(len(photos)) != metadata.ItemsReturned {
		log.WarnWithFields("photo count differs from itemsReturned", map[string]interface{}{
			"items_returned": metadata.ItemsReturned,
			"photos":         len(photos),
		})
	}

	return &Stream{Metadata: metadata, Photos: photos, Warnings: sctx.Warnings()}, nil
}

// parseMetadata also reports whether itemsReturned held a usable count
func parseMetadata(ctx *schema.Context, obj schema.Object) (models.AlbumMetadata, bool, error) {
	var (
		md  models.AlbumMetadata
		err error
	)
	if md.StreamCtag, err = schema.Extract(ctx, obj, "streamCtag", schema.Required, schema.String, ""); err != nil {
		return md, false, err
	}
	md.StreamName, _ = schema.Extract(ctx, obj, "streamName", schema.Optional, schema.String, "")
	md.OwnerFirstName, _ = schema.Extract(ctx, obj, "userFirstName", schema.Optional, schema.String, "")
	md.OwnerLastName, _ = schema.Extract(ctx, obj, "userLastName", schema.Optional, schema.String, "")
	// Count never yields a negative value, so -1 marks the default
	count, _ := schema.Extract(ctx, obj, "itemsReturned", schema.Optional, schema.Count, -1)
	hasCount := count >= 0
	if hasCount {
		md.ItemsReturned = count
	}
	md.Locations, _ = schema.Extract[json.RawMessage](ctx, obj, "locations", schema.Lenient, schema.Raw, nil)
	return md, hasCount, nil
}

func parsePhoto(ctx *schema.Context, raw json.RawMessage) (models.Photo, error) {
	var photo models.Photo

	obj, err := schema.ObjectOf(raw)
	if err != nil {
		return photo, err
	}

	if photo.GUID, err = schema.Extract(ctx, obj, "photoGuid", schema.Required, schema.String, ""); err != nil {
		return photo, err
	}
	if photo.GUID == "" {
		return photo, &errs.FieldError{Issue: ctx.Field("photoGuid").Issue(errs.IssueInvalidValue, "empty photoGuid")}
	}

	rawDerivs, err := schema.Extract(ctx, obj, "derivatives", schema.Required, schema.ObjectOf, nil)
	if err != nil {
		return photo, err
	}

	photo.Caption, _ = schema.Extract(ctx, obj, "caption", schema.Lenient, schema.String, "")
	photo.DateCreated, _ = schema.Extract(ctx, obj, "dateCreated", schema.Lenient, schema.String, "")
	photo.BatchDateCreated, _ = schema.Extract(ctx, obj, "batchDateCreated", schema.Lenient, schema.String, "")
	photo.Width, _ = schema.Extract(ctx, obj, "width", schema.Lenient, schema.Int, 0)
	photo.Height, _ = schema.Extract(ctx, obj, "height", schema.Lenient, schema.Int, 0)

	derivsCtx := ctx.Field("derivatives")
	photo.Derivatives = make(map[string]models.Derivative, len(rawDerivs))
	for key, rawDeriv := range rawDerivs {
		dctx := derivsCtx.Field(key)
		d, err := parseDerivative(dctx, rawDeriv)
		if err != nil {
			dctx.Skip(err)
			continue
		}
		photo.Derivatives[key] = d
	}

	return photo, nil
}

func parseDerivative(ctx *schema.Context, raw json.RawMessage) (models.Derivative, error) {
	var d models.Derivative

	obj, err := schema.ObjectOf(raw)
	if err != nil {
		return d, err
	}
	if d.Checksum, err = schema.Extract(ctx, obj, "checksum", schema.Required, schema.String, ""); err != nil {
		return d, err
	}
	d.FileSize, _ = schema.Extract(ctx, obj, "fileSize", schema.Optional, schema.Count, 0)
	d.Width, _ = schema.Extract(ctx, obj, "width", schema.Optional, schema.Int, 0)
	d.Height, _ = schema.Extract(ctx, obj, "height", schema.Optional, schema.Int, 0)
	return d, nil
}
