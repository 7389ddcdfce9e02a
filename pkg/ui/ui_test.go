package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{NoColor: true})

	p.Info("Album", "Trip")
	p.Warning("asset URLs unavailable", "400")
	p.Error("fetch failed", errors.New("boom"))
	p.Success("done")

	assert.Equal(t, "Album: Trip\nasset URLs unavailable: 400\nfetch failed: boom\ndone\n", buf.String())
}

func TestPrinterQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{Quiet: true, NoColor: true})

	p.Info("Album", "Trip")
	p.Success("done")
	p.Highlight("heading")
	p.Line("x %d", 1)
	assert.Empty(t, buf.String())

	p.Error("still shown")
	assert.Equal(t, "still shown\n", buf.String())
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{NoColor: true})
	pr := p.NewProgress("Trip", 4)

	pr.Downloaded(2048)
	pr.Skipped()
	pr.Failed("g3", errors.New("no usable derivative"))

	line := pr.Line()
	assert.Contains(t, line, "Trip [")
	assert.Contains(t, line, "3/4")
	assert.Contains(t, line, "2.0 KB")
	assert.Contains(t, line, "1 skipped")
	assert.Contains(t, line, "1 failed")
	assert.Equal(t, 18, strings.Count(line, "━"))

	pr.Finish()
	out := buf.String()
	assert.Contains(t, out, "Downloaded 1 of 4 photos from Trip")
	assert.Contains(t, out, "g3: no usable derivative")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 MB", FormatBytes(1536*1024))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}
