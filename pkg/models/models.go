package models

import (
	"encoding/json"
	"strings"

	errs "icloudalbum/pkg/errors"
)

// AlbumMetadata describes a shared album as reported by the webstream endpoint
type AlbumMetadata struct {
	StreamName     string `json:"stream_name"`
	OwnerFirstName string `json:"owner_first_name"`
	OwnerLastName  string `json:"owner_last_name"`
	StreamCtag     string `json:"stream_ctag"`
	// ItemsReturned is the count claimed by the server, not len(Photos)
	ItemsReturned int64           `json:"items_returned"`
	Locations     json.RawMessage `json:"locations,omitempty"`
}

// OwnerName joins the owner's first and last name
func (m AlbumMetadata) OwnerName() string {
	return strings.TrimSpace(m.OwnerFirstName + " " + m.OwnerLastName)
}

// Derivative is one size or quality variant of a photo.
// Zero values mean unknown; URL stays empty until enrichment.
type Derivative struct {
	Checksum string `json:"checksum"`
	FileSize int64  `json:"file_size,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	URL      string `json:"url,omitempty"`
}

// HasDimensions reports whether both width and height are known
func (d Derivative) HasDimensions() bool {
	return d.Width > 0 && d.Height > 0
}

// Resolution is width*height, or 0 when dimensions are unknown
func (d Derivative) Resolution() int64 {
	if !d.HasDimensions() {
		return 0
	}
	return int64(d.Width) * int64(d.Height)
}

// Photo is a single asset of a shared album
type Photo struct {
	GUID             string                `json:"photo_guid"`
	Caption          string                `json:"caption,omitempty"`
	DateCreated      string                `json:"date_created,omitempty"`
	BatchDateCreated string                `json:"batch_date_created,omitempty"`
	Width            int                   `json:"width,omitempty"`
	Height           int                   `json:"height,omitempty"`
	Derivatives      map[string]Derivative `json:"derivatives"`
}

// Checksums returns the checksum of every derivative
func (p Photo) Checksums() []string {
	out := make([]string, 0, len(p.Derivatives))
	for _, d := range p.Derivatives {
		out = append(out, d.Checksum)
	}
	return out
}

// ResolvedCount is the number of derivatives that have a URL
func (p Photo) ResolvedCount() int {
	n := 0
	for _, d := range p.Derivatives {
		if d.URL != "" {
			n++
		}
	}
	return n
}

// Album is the result of one fetch
type Album struct {
	Token    string        `json:"token"`
	Metadata AlbumMetadata `json:"metadata"`
	Photos   []Photo       `json:"photos"`
	// AssetURLsDegraded is set when the asset URL phase was skipped or the
	// service rejected the batch, leaving derivatives without URLs.
	AssetURLsDegraded bool `json:"asset_urls_degraded,omitempty"`
	// Warnings lists every field or entry that was defaulted or skipped
	Warnings []errs.ValidationIssue `json:"warnings,omitempty"`
}

// GUIDs returns the photo identifiers in response order
func (a *Album) GUIDs() []string {
	out := make([]string, 0, len(a.Photos))
	for _, p := range a.Photos {
		out = append(out, p.GUID)
	}
	return out
}
