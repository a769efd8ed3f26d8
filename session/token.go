package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// fetchToken exchanges the long-lived credential for a short-lived streaming
// token via the relay.
func (c *Client) fetchToken(ctx context.Context, credential string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RelayURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("token relay returned status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to parse token relay response: %w", err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("token relay response missing token")
	}

	return body.Token, nil
}

// streamEndpoint builds the streaming URL with the sample rate and the
// short-lived token as query parameters.
func (c *Client) streamEndpoint(token string) (string, error) {
	u, err := url.Parse(c.cfg.StreamURL)
	if err != nil {
		return "", fmt.Errorf("invalid streaming URL: %w", err)
	}

	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(c.cfg.SampleRate))
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
