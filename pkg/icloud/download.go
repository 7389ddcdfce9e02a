package icloud

import (
	"context"
	"net/url"
	"path"

	"icloudalbum/pkg/logger"
	"icloudalbum/pkg/media"
	"icloudalbum/pkg/models"
	"icloudalbum/pkg/retry"
)

// Download is the content of one selected derivative
type Download struct {
	PhotoGUID string
	Key       string
	URL       string
	Data      []byte
	MIMEType  string
	Extension string
}

// DownloadPhoto selects the best derivative of photo, fetches it with the
// client's retry policy and sniffs its MIME type. Persisting the bytes is
// left to the caller.
func (c *Client) DownloadPhoto(ctx context.Context, photo models.Photo) (*Download, error) {
	log := c.logger.WithField("photo_guid", photo.GUID)

	sel, err := media.SelectDerivative(photo, c.markers)
	if err != nil {
		log.WithError(err).Warn("no derivative to download")
		return nil, err
	}

	data, _, err := retry.Do(ctx, c.retryConfig("download", log), func(ctx context.Context) ([]byte, error) {
		ex, err := c.get(ctx, sel.Derivative.URL)
		if err != nil {
			return nil, err
		}
		if err := checkStatus(sel.Derivative.URL, ex); err != nil {
			return nil, err
		}
		return ex.body, nil
	})
	if err != nil {
		logger.LogDownload(log, photo.GUID, sel.Key, "", 0, err)
		return nil, err
	}

	mimeType := media.DetectMIME(data, filenameHint(sel.Derivative.URL))
	logger.LogDownload(log, photo.GUID, sel.Key, mimeType, len(data), nil)

	return &Download{
		PhotoGUID: photo.GUID,
		Key:       sel.Key,
		URL:       sel.Derivative.URL,
		Data:      data,
		MIMEType:  mimeType,
		Extension: media.ExtensionForMIME(mimeType),
	}, nil
}

// filenameHint is the last path segment of rawURL, ignoring the query
func filenameHint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return base
}
