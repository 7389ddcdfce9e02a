package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// maxCaptionLen bounds the caption part of a file name, in runes
const maxCaptionLen = 100

// skipExt marks files in an album directory that are not assets
var skipExt = map[string]bool{".tmp": true, ".json": true}

// Manager handles file storage and duplicate detection for one album
// directory. Files are tracked by photo GUID.
type Manager struct {
	outputDir string
	// saved maps photo GUID to the file name it was stored under
	saved map[string]string
	mu    sync.RWMutex
}

// NewManager creates the output directory if needed and indexes the
// photos already present in it
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		saved:     make(map[string]string),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles recovers GUIDs from names written by FileName
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || skipExt[filepath.Ext(name)] {
			continue
		}
		if guid := GUIDFromFileName(name); guid != "" {
			m.saved[guid] = name
		}
	}

	return nil
}

// IsDownloaded checks if the photo with guid is already stored
func (m *Manager) IsDownloaded(guid string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.saved[guid]
	return ok
}

// FileFor returns the file name guid was stored under
func (m *Manager) FileFor(guid string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.saved[guid]
	return name, ok
}

// Save writes r to name inside the output directory through a temporary
// file and an atomic rename, and records it for guid. It returns the full
// path.
func (m *Manager) Save(r io.Reader, guid, name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	filename := filepath.Join(m.outputDir, name)

	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save photo data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[guid] = name
	m.mu.Unlock()

	return filename, nil
}

// WriteFile atomically replaces name in the output directory with data
func (m *Manager) WriteFile(name string, data []byte) (string, error) {
	filename := filepath.Join(m.outputDir, name)
	tempFile := filename + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return filename, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetDownloadedCount returns the number of stored photos
func (m *Manager) GetDownloadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}

// FileName builds "{index+1}_{guid}_{caption}{ext}". A negative index
// drops the number and an empty sanitized caption drops the caption part.
func FileName(index int, guid, caption, ext string) string {
	var b strings.Builder
	if index >= 0 {
		b.WriteString(strconv.Itoa(index + 1))
		b.WriteByte('_')
	}
	b.WriteString(guid)
	if c := SanitizeCaption(caption); c != "" {
		b.WriteByte('_')
		b.WriteString(c)
	}
	b.WriteString(ext)
	return b.String()
}

// SanitizeCaption makes caption safe as part of a file name: path
// separators, characters reserved on Windows and control characters become
// '_', surrounding spaces and dots are trimmed and the result is truncated.
func SanitizeCaption(caption string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		case unicode.IsControl(r):
			return '_'
		}
		return r
	}, caption)

	mapped = strings.Trim(mapped, " .")
	if utf8.RuneCountInString(mapped) > maxCaptionLen {
		mapped = strings.TrimRight(string([]rune(mapped)[:maxCaptionLen]), " .")
	}
	return mapped
}

// GUIDFromFileName recovers the photo GUID from a name written by FileName
func GUIDFromFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.SplitN(base, "_", 3)
	if len(parts) >= 2 {
		if _, err := strconv.Atoi(parts[0]); err == nil {
			return parts[1]
		}
	}
	return parts[0]
}
