package tokens

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseReference extracts an album token from either a bare token or a
// share URL such as https://www.icloud.com/sharedalbum/#B0z5qAGN1JIFd3y.
// The token of a share URL is its fragment, with any ";" suffix removed.
func ParseReference(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty album reference", ErrInvalidEntry)
	}

	if !strings.Contains(ref, "://") {
		token := strings.TrimPrefix(ref, "#")
		if token == "" || strings.ContainsAny(token, "/?# ") {
			return "", fmt.Errorf("%w: %q is not an album token", ErrInvalidEntry, ref)
		}
		return token, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: invalid share URL: %v", ErrInvalidEntry, err)
	}
	token, _, _ := strings.Cut(u.Fragment, ";")
	if token == "" {
		return "", fmt.Errorf("%w: share URL %q has no token after '#'", ErrInvalidEntry, ref)
	}
	return token, nil
}
