package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivativeResolution(t *testing.T) {
	assert.Equal(t, int64(480000), Derivative{Width: 800, Height: 600}.Resolution())
	assert.Equal(t, int64(0), Derivative{Width: 800}.Resolution())
	assert.False(t, Derivative{Height: 600}.HasDimensions())

	// 50000*50000 overflows int32
	assert.Equal(t, int64(2_500_000_000), Derivative{Width: 50000, Height: 50000}.Resolution())
}

func TestPhotoHelpers(t *testing.T) {
	p := Photo{
		GUID: "g1",
		Derivatives: map[string]Derivative{
			"1": {Checksum: "c1", URL: "https://a/1"},
			"2": {Checksum: "c2"},
		},
	}

	assert.ElementsMatch(t, []string{"c1", "c2"}, p.Checksums())
	assert.Equal(t, 1, p.ResolvedCount())
}

func TestAlbumGUIDsKeepOrder(t *testing.T) {
	a := &Album{Photos: []Photo{{GUID: "b"}, {GUID: "a"}, {GUID: "c"}}}
	assert.Equal(t, []string{"b", "a", "c"}, a.GUIDs())
}

func TestOwnerName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", AlbumMetadata{OwnerFirstName: "Ada", OwnerLastName: "Lovelace"}.OwnerName())
	assert.Equal(t, "Ada", AlbumMetadata{OwnerFirstName: "Ada"}.OwnerName())
	assert.Equal(t, "", AlbumMetadata{}.OwnerName())
}
