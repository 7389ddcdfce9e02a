package media

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"

	"icloudalbum/pkg/logger"
)

const (
	MIMEJPEG      = "image/jpeg"
	MIMEPNG       = "image/png"
	MIMEGIF       = "image/gif"
	MIMEHEIC      = "image/heic"
	MIMEHEIF      = "image/heif"
	MIMEMP4       = "video/mp4"
	MIMEQuickTime = "video/quicktime"
)

// SniffLen is how many leading bytes DetectMIME looks at
const SniffLen = 12

var (
	sigJPEG = []byte{0xFF, 0xD8, 0xFF}
	sigPNG  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	sigGIF  = []byte{0x47, 0x49, 0x46, 0x38}
	ftyp    = []byte("ftyp")
	brandQT = []byte("qt")
	brandHE = []byte("hei")
)

// signature is one entry of the ordered magic number table
type signature struct {
	mime  string
	match func(b []byte) bool
}

// Order matters: the QuickTime brand must be tested before generic ftyp,
// otherwise every .mov would be reported as mp4. HEIC and HEIF carry ftyp
// too, so they are tested before generic mp4 as well.
var signatures = []signature{
	{MIMEJPEG, func(b []byte) bool { return bytes.HasPrefix(b, sigJPEG) }},
	{MIMEPNG, func(b []byte) bool { return bytes.HasPrefix(b, sigPNG) }},
	{MIMEGIF, func(b []byte) bool {
		return len(b) >= 6 && bytes.HasPrefix(b, sigGIF) && (b[4] == '7' || b[4] == '9') && b[5] == 'a'
	}},
	{MIMEQuickTime, func(b []byte) bool { return hasBrand(b, brandQT) }},
	{MIMEHEIC, func(b []byte) bool { return hasBrand(b, brandHE) && len(b) >= 12 && b[11] == 'c' }},
	{MIMEHEIF, func(b []byte) bool { return hasBrand(b, brandHE) && len(b) >= 12 && b[11] == 'f' }},
	{MIMEMP4, func(b []byte) bool { return len(b) >= 8 && bytes.Equal(b[4:8], ftyp) }},
}

// hasBrand checks for an ISO-BMFF ftyp box whose major brand starts with brand
func hasBrand(b, brand []byte) bool {
	if len(b) < 8+len(brand) || !bytes.Equal(b[4:8], ftyp) {
		return false
	}
	return bytes.Equal(b[8:8+len(brand)], brand)
}

// extensions maps MIME types to file extensions. Unknown types use .jpg.
var extensions = map[string]string{
	MIMEJPEG:      ".jpg",
	MIMEPNG:       ".png",
	MIMEHEIC:      ".heic",
	MIMEHEIF:      ".heif",
	MIMEMP4:       ".mp4",
	MIMEQuickTime: ".mov",
	MIMEGIF:       ".gif",
}

// byExtension covers media extensions missing from the platform mime table
var byExtension = map[string]string{
	".jpg":  MIMEJPEG,
	".jpeg": MIMEJPEG,
	".png":  MIMEPNG,
	".gif":  MIMEGIF,
	".heic": MIMEHEIC,
	".heif": MIMEHEIF,
	".mp4":  MIMEMP4,
	".m4v":  MIMEMP4,
	".mov":  MIMEQuickTime,
}

// DetectMIME determines the MIME type of data from its magic number. When no
// signature matches, the extension of filenameHint is used; without a usable
// hint the result is image/jpeg.
func DetectMIME(data []byte, filenameHint string) string {
	head := data
	if len(head) > SniffLen {
		head = head[:SniffLen]
	}
	for _, sig := range signatures {
		if sig.match(head) {
			return sig.mime
		}
	}

	if filenameHint != "" {
		if guess := mimeFromFilename(filenameHint); guess != "" {
			return guess
		}
	}

	logger.WithFields(map[string]interface{}{
		"size":          len(data),
		"filename_hint": filenameHint,
	}).Warn("could not detect MIME type, defaulting to image/jpeg")
	return MIMEJPEG
}

func mimeFromFilename(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if known, ok := byExtension[ext]; ok {
		return known
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mediaType
}

// ExtensionForMIME returns the file extension for mimeType, with leading dot
func ExtensionForMIME(mimeType string) string {
	if ext, ok := extensions[strings.ToLower(mimeType)]; ok {
		return ext
	}
	logger.WithField("mime_type", mimeType).Warn("unknown MIME type, defaulting to .jpg")
	return ".jpg"
}

// ExtensionForContent is DetectMIME followed by ExtensionForMIME
func ExtensionForContent(data []byte, filenameHint string) string {
	return ExtensionForMIME(DetectMIME(data, filenameHint))
}

// IsVideo reports whether mimeType is a video type
func IsVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/")
}
