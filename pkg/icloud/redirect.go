package icloud

import (
	"context"
	"encoding/json"
	"strings"
)

// streamRequest is the webstream payload; a null ctag asks for the full album
type streamRequest struct {
	StreamCtag *string `json:"streamCtag"`
}

// ProbeRedirect sends a single webstream request to baseURL. When the service
// answers with RedirectStatus and names a host, the album's base URL on that
// host is returned. Any other response, including a redirect without a usable
// host, leaves baseURL unchanged. Only transport failures are returned as
// errors; the probe never retries.
func (c *Client) ProbeRedirect(ctx context.Context, baseURL, token string) (string, error) {
	url := EndpointURL(baseURL, WebstreamEndpoint)

	ex, err := c.postJSON(ctx, url, streamRequest{})
	if err != nil {
		return "", err
	}

	if ex.status != RedirectStatus {
		return baseURL, nil
	}

	host := redirectHost(ex.body)
	if host == "" {
		c.logger.WarnWithFields("redirect without usable host", map[string]interface{}{
			"url":    url,
			"status": ex.status,
		})
		return baseURL, nil
	}

	redirected := HostURL(host, token)
	c.logger.InfoWithFields("album redirected", map[string]interface{}{
		"from": baseURL,
		"to":   redirected,
	})
	return redirected, nil
}

// redirectHost extracts the relocation host from a redirect body
func redirectHost(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	host, _ := payload[RedirectHostField].(string)
	host = strings.TrimSpace(host)
	if strings.ContainsAny(host, "/ ") {
		return ""
	}
	return host
}
