package icloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "icloudalbum/pkg/errors"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func TestPartition(t *testing.T) {
	tests := []struct {
		token    string
		expected int
	}{
		{"A0z5qAGN1JIFd3y", 11},
		{"B0z5qAGN1JIFd3y", 12},
		{"a0z5qAGN1JIFd3y", 37},
		{"z0z5qAGN1JIFd3y", 22},
		{"0abc", 1},
		{"dabc", 40},
		{"eabc", 1},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			p, err := Partition(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestPartitionRangeAndFirstCharacterOnly(t *testing.T) {
	for i := 0; i < len(base62Alphabet); i++ {
		c := string(base62Alphabet[i])

		p, err := Partition(c)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, 1)
		assert.LessOrEqual(t, p, PartitionCount)

		other, err := Partition(c + "SomeLongerSuffix123")
		require.NoError(t, err)
		assert.Equal(t, p, other, "partition of %q must depend only on its first character", c)
	}
}

func TestPartitionInvalidToken(t *testing.T) {
	for _, token := range []string{"", "-abc", " abc", "éabc", "_"} {
		t.Run(token, func(t *testing.T) {
			_, err := Partition(token)
			var invalid *errs.InvalidTokenError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, token, invalid.Token)
			assert.Equal(t, errs.ErrorTypeInvalidToken, errs.TypeOf(err))

			_, err = ResolvePartitionURL(token)
			assert.ErrorAs(t, err, &invalid)

			assert.Equal(t, LenientPartition, PartitionLenient(token))
		})
	}
}

func TestResolvePartitionURL(t *testing.T) {
	url, err := ResolvePartitionURL("A0z5qAGN1JIFd3y")
	require.NoError(t, err)
	assert.Equal(t, "https://p11-sharedstreams.icloud.com/A0z5qAGN1JIFd3y/sharedstreams/", url)

	url, err = ResolvePartitionURL("B0z5qAGN1JIFd3y")
	require.NoError(t, err)
	assert.Equal(t, "https://p12-sharedstreams.icloud.com/B0z5qAGN1JIFd3y/sharedstreams/", url)

	url, err = ResolvePartitionURL("0abc")
	require.NoError(t, err)
	assert.Equal(t, "https://p01-sharedstreams.icloud.com/0abc/sharedstreams/", url)
}

func TestClientResolveBaseURL(t *testing.T) {
	strict := NewClient(Options{Host: "streams.example.test"})
	url, err := strict.ResolveBaseURL("a0z5")
	require.NoError(t, err)
	assert.Equal(t, "https://p37-streams.example.test/a0z5/sharedstreams/", url)

	_, err = strict.ResolveBaseURL("")
	assert.Error(t, err)

	lenient := NewClient(Options{LenientTokens: true})
	url, err = lenient.ResolveBaseURL("")
	require.NoError(t, err)
	assert.Equal(t, "https://p10-sharedstreams.icloud.com//sharedstreams/", url)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "https://h/t/sharedstreams/webstream", EndpointURL("https://h/t/sharedstreams/", WebstreamEndpoint))
	assert.Equal(t, "https://h/t/sharedstreams/webasseturls", EndpointURL("https://h/t/sharedstreams", AssetURLsEndpoint))
	assert.Equal(t, "https://p42-sharedstreams.icloud.com/tok/sharedstreams/", HostURL("p42-sharedstreams.icloud.com", "tok"))
}
