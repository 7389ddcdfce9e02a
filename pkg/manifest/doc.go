// Package manifest records what was fetched and downloaded for an album in
// an album.json file next to the downloaded assets.
package manifest
