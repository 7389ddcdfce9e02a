package media

import (
	"sort"
	"strings"

	"icloudalbum/pkg/config"
	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/models"
)

// Markers decide which derivative keys are treated as the original tier.
// This is a heuristic based on how the service names its keys, not
// something the service guarantees.
type Markers struct {
	// Substrings match case-insensitively anywhere in the key
	Substrings []string
	// ReservedKeys match the key exactly
	ReservedKeys []string
}

// DefaultMarkers returns the markers observed on the shared streams service
func DefaultMarkers() Markers {
	return Markers{
		Substrings:   []string{"original", "full"},
		ReservedKeys: []string{"3", "4"},
	}
}

// MarkersFromConfig builds Markers from the selection section of the configuration
func MarkersFromConfig(cfg config.SelectionConfig) Markers {
	return Markers{
		Substrings:   append([]string(nil), cfg.OriginalMarkers...),
		ReservedKeys: append([]string(nil), cfg.ReservedKeys...),
	}
}

// IsOriginal reports whether key looks like an original-quality derivative
func (m Markers) IsOriginal(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range m.Substrings {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	for _, k := range m.ReservedKeys {
		if key == k {
			return true
		}
	}
	return false
}

// Selection is the derivative chosen for download
type Selection struct {
	Key        string
	Derivative models.Derivative
	Original   bool
}

// SelectDerivative picks one derivative of photo to download.
//
// Derivatives without a URL are never chosen. Likely originals win over
// higher resolution non-originals; among them the largest dimensioned one
// wins, and an undimensioned original is only used when no dimensioned
// original exists. Without originals the largest dimensioned derivative is
// chosen, then any derivative with a URL. Keys are visited in sorted order
// so ties resolve the same way every time.
func SelectDerivative(photo models.Photo, markers Markers) (Selection, error) {
	keys := make([]string, 0, len(photo.Derivatives))
	for key, d := range photo.Derivatives {
		if d.URL != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return Selection{}, &errs.NoUsableDerivativeError{PhotoGUID: photo.GUID}
	}
	sort.Strings(keys)

	var (
		bestOriginal    string
		bestOriginalRes int64
		provisional     string
		bestAny         string
		bestAnyRes      int64
	)

	for _, key := range keys {
		d := photo.Derivatives[key]
		res := d.Resolution()

		if markers.IsOriginal(key) {
			if res > 0 {
				if res > bestOriginalRes {
					bestOriginal, bestOriginalRes = key, res
				}
			} else if provisional == "" {
				provisional = key
			}
			continue
		}
		if res > bestAnyRes {
			bestAny, bestAnyRes = key, res
		}
	}

	pick := func(key string, original bool) (Selection, error) {
		return Selection{Key: key, Derivative: photo.Derivatives[key], Original: original}, nil
	}

	switch {
	case bestOriginal != "":
		return pick(bestOriginal, true)
	case provisional != "":
		return pick(provisional, true)
	case bestAny != "":
		return pick(bestAny, false)
	default:
		return pick(keys[0], false)
	}
}
