package icloud

import (
	"fmt"
	"strings"

	errs "icloudalbum/pkg/errors"
)

const (
	// DefaultHost is the shared streams service host suffix
	DefaultHost = "sharedstreams.icloud.com"

	// WebstreamEndpoint returns album metadata and the photo list
	WebstreamEndpoint = "webstream"

	// AssetURLsEndpoint maps derivative checksums to download locations
	AssetURLsEndpoint = "webasseturls"

	// RedirectStatus is the non-standard status the service uses to relocate an album
	RedirectStatus = 330

	// RedirectHostField names the new host in a RedirectStatus body
	RedirectHostField = "X-Apple-MMe-Host"

	// PartitionCount is the number of API shards
	PartitionCount = 40

	// LenientPartition is used by PartitionLenient for tokens that cannot be resolved
	LenientPartition = 10
)

// base62Value maps 0-9, A-Z, a-z to 0..61
func base62Value(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, true
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 36, true
	default:
		return 0, false
	}
}

// Partition derives the API shard in [1, 40] from the first character of token
func Partition(token string) (int, error) {
	if token == "" {
		return 0, &errs.InvalidTokenError{Token: token, Reason: "token is empty"}
	}
	v, ok := base62Value(token[0])
	if !ok {
		return 0, &errs.InvalidTokenError{
			Token:  token,
			Reason: fmt.Sprintf("first character %q is not a base-62 digit", token[0]),
		}
	}
	return 1 + v%PartitionCount, nil
}

// PartitionLenient is Partition that falls back to LenientPartition instead of failing
func PartitionLenient(token string) int {
	p, err := Partition(token)
	if err != nil {
		return LenientPartition
	}
	return p
}

// ResolvePartitionURL returns the sharded base URL for token on DefaultHost
func ResolvePartitionURL(token string) (string, error) {
	return resolvePartitionURL(DefaultHost, token, false)
}

func resolvePartitionURL(host, token string, lenient bool) (string, error) {
	var partition int
	if lenient {
		partition = PartitionLenient(token)
	} else {
		p, err := Partition(token)
		if err != nil {
			return "", err
		}
		partition = p
	}
	return PartitionURL(host, partition, token), nil
}

// PartitionURL formats the base URL of one shard
func PartitionURL(host string, partition int, token string) string {
	return fmt.Sprintf("https://p%02d-%s/%s/sharedstreams/", partition, host, token)
}

// HostURL formats the base URL on an explicit host, as named by a redirect
func HostURL(host, token string) string {
	return fmt.Sprintf("https://%s/%s/sharedstreams/", host, token)
}

// EndpointURL joins a base URL and an endpoint name
func EndpointURL(baseURL, endpoint string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + endpoint
}
