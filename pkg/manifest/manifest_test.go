package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/models"
)

func sampleAlbum() *models.Album {
	return &models.Album{
		Token: "B0z5qAGN1JIFd3y",
		Metadata: models.AlbumMetadata{
			StreamName:     "Trip",
			OwnerFirstName: "Ada",
			OwnerLastName:  "Lovelace",
			StreamCtag:     "FT;1",
			ItemsReturned:  2,
		},
		Photos: []models.Photo{
			{GUID: "g1", Caption: "Beach", Width: 1920, Height: 1080, Derivatives: map[string]models.Derivative{
				"1": {Checksum: "a", URL: "https://x/a"},
				"2": {Checksum: "b"},
			}},
			{GUID: "g2", Derivatives: map[string]models.Derivative{}},
		},
		Warnings: []errs.ValidationIssue{{Path: "photos[2]", Kind: errs.IssueInvalidValue, Reason: "bad"}},
	}
}

func TestFromAlbum(t *testing.T) {
	m := FromAlbum(sampleAlbum(), "B0z...d3y")

	assert.Equal(t, "B0z...d3y", m.Token)
	assert.Equal(t, "Trip", m.StreamName)
	assert.Equal(t, "Ada Lovelace", m.Owner)
	assert.Equal(t, int64(2), m.ItemsReturned)
	assert.Equal(t, []string{"photos[2]: invalid_value (bad)"}, m.Warnings)

	require.Len(t, m.Photos, 2)
	assert.Equal(t, 1, m.Photos[0].Position)
	assert.Equal(t, 2, m.Photos[0].Derivatives)
	assert.Equal(t, 1, m.Photos[0].ResolvedURLs)
	assert.Equal(t, 2, m.Photos[1].Position)

	assert.Equal(t, Summary{Total: 2, Pending: 2}, m.Summarize())
}

func TestRecord(t *testing.T) {
	m := FromAlbum(sampleAlbum(), "tok")

	require.NoError(t, m.Record("g1", Download{Derivative: "1", File: "1_g1_Beach.jpg", MIMEType: "image/jpeg", Size: 10}))
	require.NoError(t, m.Record("g2", Download{Err: errors.New("no usable derivative")}))
	assert.Error(t, m.Record("missing", Download{}))

	r, ok := m.Photo("g1")
	require.True(t, ok)
	assert.Equal(t, "1_g1_Beach.jpg", r.File)
	assert.False(t, r.DownloadedAt.IsZero())

	assert.Equal(t, Summary{Total: 2, Downloaded: 1, Failed: 1}, m.Summarize())
	assert.Equal(t, []string{"g2"}, m.Failed())

	// a later success clears the error
	require.NoError(t, m.Record("g2", Download{File: "2_g2.jpg", Skipped: true}))
	assert.Equal(t, Summary{Total: 2, Downloaded: 1, Skipped: 1}, m.Summarize())
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir))

	m := FromAlbum(sampleAlbum(), "tok")
	require.NoError(t, m.Record("g1", Download{File: "1_g1_Beach.jpg"}))

	data, err := m.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), data, 0644))
	assert.True(t, Exists(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Trip", loaded.StreamName)
	require.Len(t, loaded.Photos, 2)

	r, ok := loaded.Photo("g1")
	require.True(t, ok)
	assert.Equal(t, "1_g1_Beach.jpg", r.File)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestPhotoRecordDisplay(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{1920, 1080, "16:9"},
		{4032, 3024, "4:3"},
		{1000, 1000, "1:1"},
		{1080, 1920, "9:16"},
		{3024, 4032, "3:4"},
		{3000, 1000, "3.00:1"},
		{100, 0, "unknown"},
	}
	for _, tt := range tests {
		r := &PhotoRecord{Width: tt.w, Height: tt.h}
		assert.Equal(t, tt.want, r.AspectRatio(), "%dx%d", tt.w, tt.h)
	}

	r := &PhotoRecord{Caption: "A long caption here"}
	assert.Equal(t, "A long...", r.FormattedCaption(9))
	assert.Equal(t, "A long caption here", r.FormattedCaption(50))
}
