// Package storage saves downloaded album assets to a local directory.
//
// Files are named "{n}_{guid}_{caption}{ext}", where n is the photo's
// 1-based position in the album and the caption part is sanitized and
// omitted when empty. The Manager indexes existing files by GUID when it is
// created, so a rerun into the same directory can skip photos it already
// has. Writes go through a temporary file and a rename, and a Manager is
// safe for concurrent use.
//
// Usage:
//
//	manager, err := storage.NewManager("albums/trip")
//	if err != nil {
//		return err
//	}
//	if !manager.IsDownloaded(photo.GUID) {
//		name := storage.FileName(i, photo.GUID, photo.Caption, dl.Extension)
//		_, err = manager.Save(bytes.NewReader(dl.Data), photo.GUID, name)
//	}
package storage
