// Package icloud is a client for the iCloud shared streams web service that
// backs public shared albums.
//
// An album is addressed by its share token. The token's first character
// selects one of PartitionCount service partitions; the service may then
// relocate the album to another host, which a single probe request
// discovers. Album metadata and the photo list come from the webstream
// endpoint, and download URLs for each photo's derivatives come from the
// webasseturls endpoint, keyed by derivative checksum.
//
// Basic usage:
//
//	client := icloud.NewClient(icloud.DefaultOptions())
//	album, err := client.FetchAlbum(ctx, "B0z5qAGN1JIFd3y", icloud.FetchOptions{})
//	if err != nil {
//		return err
//	}
//	for _, photo := range album.Photos {
//		dl, err := client.DownloadPhoto(ctx, photo)
//		...
//	}
//
// Both endpoints are called through the retry executor. Responses are
// validated before mapping: missing required members fail the call with a
// SchemaError while malformed optional members and malformed photos are
// recorded as warnings on the result.
package icloud
