package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const barWidth = 24

// Progress renders a single updating progress line for an album download
type Progress struct {
	mu         sync.Mutex
	printer    *Printer
	album      string
	total      int
	done       int
	skipped    int
	failed     int
	bytes      int64
	startTime  time.Time
	lastFailed []string
}

// NewProgress starts tracking total photos of album
func (p *Printer) NewProgress(album string, total int) *Progress {
	return &Progress{
		printer:   p,
		album:     album,
		total:     total,
		startTime: time.Now(),
	}
}

// Downloaded records a saved photo of size bytes
func (pr *Progress) Downloaded(size int64) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.done++
	pr.bytes += size
	pr.print()
}

// Skipped records a photo that was already on disk
func (pr *Progress) Skipped() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.done++
	pr.skipped++
	pr.print()
}

// Failed records a photo that could not be downloaded
func (pr *Progress) Failed(guid string, err error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.done++
	pr.failed++
	pr.lastFailed = append(pr.lastFailed, fmt.Sprintf("%s: %v", guid, err))
	pr.print()
}

// Line returns the current progress line without printing it
func (pr *Progress) Line() string {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.line()
}

func (pr *Progress) line() string {
	filled := 0
	if pr.total > 0 {
		filled = pr.done * barWidth / pr.total
	}
	bar := pr.printer.render(pr.printer.styles.bar, strings.Repeat("━", filled)) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %s",
		pr.printer.render(pr.printer.styles.label, pr.album),
		bar,
		pr.done,
		pr.total,
		FormatBytes(pr.bytes),
	)
	if pr.skipped > 0 {
		line += fmt.Sprintf(" • %d skipped", pr.skipped)
	}
	if pr.failed > 0 {
		line += " • " + pr.printer.render(pr.printer.styles.errorMsg, fmt.Sprintf("%d failed", pr.failed))
	}
	return line
}

func (pr *Progress) print() {
	if pr.printer.quiet {
		return
	}
	fmt.Fprintf(pr.printer.out, "\r%s", pr.line())
}

// Finish ends the progress line and prints a summary
func (pr *Progress) Finish() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.printer.quiet {
		return
	}
	elapsed := time.Since(pr.startTime)
	downloaded := pr.done - pr.skipped - pr.failed

	fmt.Fprintf(pr.printer.out, "\n\n%s\n", pr.printer.render(pr.printer.styles.success,
		fmt.Sprintf("✓ Downloaded %d of %d photos from %s", downloaded, pr.total, pr.album)))
	fmt.Fprintf(pr.printer.out, "  %s %s in %s\n", pr.printer.Dim("•"), FormatBytes(pr.bytes), FormatDuration(elapsed))
	if pr.skipped > 0 {
		fmt.Fprintf(pr.printer.out, "  %s %d already present\n", pr.printer.Dim("•"), pr.skipped)
	}
	if pr.failed > 0 {
		fmt.Fprintf(pr.printer.out, "  %s %d failed\n", pr.printer.Dim("•"), pr.failed)
		for _, f := range pr.lastFailed {
			fmt.Fprintf(pr.printer.out, "    %s\n", pr.printer.Dim(f))
		}
	}
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
