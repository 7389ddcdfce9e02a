package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"icloudalbum/pkg/models"
)

// FileName is the manifest's name inside an album directory
const FileName = "album.json"

// Manifest describes an album directory: the album metadata as fetched and
// one record per photo with the file it was saved to
type Manifest struct {
	Token             string         `json:"token"`
	StreamName        string         `json:"stream_name,omitempty"`
	Owner             string         `json:"owner,omitempty"`
	StreamCtag        string         `json:"stream_ctag"`
	ItemsReturned     int64          `json:"items_returned"`
	FetchedAt         time.Time      `json:"fetched_at"`
	AssetURLsDegraded bool           `json:"asset_urls_degraded,omitempty"`
	Warnings          []string       `json:"warnings,omitempty"`
	Photos            []*PhotoRecord `json:"photos"`

	mu    sync.Mutex
	index map[string]*PhotoRecord
}

// PhotoRecord is the manifest entry of one photo
type PhotoRecord struct {
	Position     int       `json:"position"`
	GUID         string    `json:"guid"`
	Caption      string    `json:"caption,omitempty"`
	DateCreated  string    `json:"date_created,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	Derivatives  int       `json:"derivatives"`
	ResolvedURLs int       `json:"resolved_urls"`
	Derivative   string    `json:"derivative,omitempty"`
	File         string    `json:"file,omitempty"`
	MIMEType     string    `json:"mime_type,omitempty"`
	FileSize     int64     `json:"file_size,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at,omitempty"`
	Skipped      bool      `json:"skipped,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Download describes a completed or failed download for Record
type Download struct {
	Derivative string
	File       string
	MIMEType   string
	Size       int64
	Skipped    bool
	Err        error
}

// FromAlbum builds a manifest for album with one record per photo in album order
func FromAlbum(album *models.Album, token string) *Manifest {
	m := &Manifest{
		Token:             token,
		StreamName:        album.Metadata.StreamName,
		Owner:             album.Metadata.OwnerName(),
		StreamCtag:        album.Metadata.StreamCtag,
		ItemsReturned:     album.Metadata.ItemsReturned,
		FetchedAt:         time.Now().UTC(),
		AssetURLsDegraded: album.AssetURLsDegraded,
		Photos:            make([]*PhotoRecord, 0, len(album.Photos)),
	}
	for _, w := range album.Warnings {
		m.Warnings = append(m.Warnings, w.String())
	}
	for i, p := range album.Photos {
		m.Photos = append(m.Photos, &PhotoRecord{
			Position:     i + 1,
			GUID:         p.GUID,
			Caption:      p.Caption,
			DateCreated:  p.DateCreated,
			Width:        p.Width,
			Height:       p.Height,
			Derivatives:  len(p.Derivatives),
			ResolvedURLs: p.ResolvedCount(),
		})
	}
	m.reindex()
	return m
}

func (m *Manifest) reindex() {
	m.index = make(map[string]*PhotoRecord, len(m.Photos))
	for _, r := range m.Photos {
		m.index[r.GUID] = r
	}
}

// Record stores the outcome of downloading guid. It is safe for concurrent use.
func (m *Manifest) Record(guid string, d Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.index[guid]
	if !ok {
		return fmt.Errorf("photo %s is not in the manifest", guid)
	}
	r.Derivative = d.Derivative
	r.File = d.File
	r.MIMEType = d.MIMEType
	r.FileSize = d.Size
	r.Skipped = d.Skipped
	r.Error = ""
	if d.Err != nil {
		r.Error = d.Err.Error()
		return nil
	}
	if !d.Skipped {
		r.DownloadedAt = time.Now().UTC()
	}
	return nil
}

// Photo returns the record for guid
func (m *Manifest) Photo(guid string) (*PhotoRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.index[guid]
	return r, ok
}

// Summary counts records by outcome
type Summary struct {
	Total      int
	Downloaded int
	Skipped    int
	Failed     int
	Pending    int
}

// Summarize counts the records by outcome
func (m *Manifest) Summarize() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{Total: len(m.Photos)}
	for _, r := range m.Photos {
		switch {
		case r.Error != "":
			s.Failed++
		case r.Skipped:
			s.Skipped++
		case r.File != "":
			s.Downloaded++
		default:
			s.Pending++
		}
	}
	return s
}

// Failed returns the GUIDs whose download failed, sorted
func (m *Manifest) Failed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var guids []string
	for _, r := range m.Photos {
		if r.Error != "" {
			guids = append(guids, r.GUID)
		}
	}
	sort.Strings(guids)
	return guids
}

// Marshal renders the manifest as indented JSON
func (m *Manifest) Marshal() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}

// Load reads the manifest in dir
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	m.reindex()
	return &m, nil
}

// Exists checks if dir holds a manifest
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}

// FormattedCaption returns the caption truncated to maxLength runes for display
func (r *PhotoRecord) FormattedCaption(maxLength int) string {
	runes := []rune(r.Caption)
	if len(runes) <= maxLength {
		return r.Caption
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}

// AspectRatio returns the aspect ratio as a string
func (r *PhotoRecord) AspectRatio() string {
	if r.Height == 0 {
		return "unknown"
	}

	ratio := float64(r.Width) / float64(r.Height)

	switch {
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.55 && ratio < 0.57:
		return "9:16"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}
