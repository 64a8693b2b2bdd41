// Package relay talks to the Whisperline server: key directory calls over
// plain HTTP and the real-time channel over WebSocket.
package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

type HTTPClient struct {
	Base string
	HTTP *http.Client
}

func NewHTTP(base string) *HTTPClient {
	return &HTTPClient{
		Base: base,
		HTTP: http.DefaultClient,
	}
}

// RegisterKey publishes the public key PEM for username and returns the
// fingerprint the server computed.
func (c *HTTPClient) RegisterKey(username, pubPEM string) (string, error) {
	b, err := json.Marshal(map[string]string{
		"username":       username,
		"public_key_pem": pubPEM,
	})
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Post(c.Base+"/register_key", "application/json", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("register key failed: %s", resp.Status)
	}
	var out struct {
		Fingerprint string `json:"fingerprint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Fingerprint, nil
}

// FetchKey retrieves the public key PEM and fingerprint for username.
func (c *HTTPClient) FetchKey(username string) (pem, fingerprint string, err error) {
	resp, err := c.HTTP.Get(c.Base + "/public_key/" + username)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", "", fmt.Errorf("fetch key failed: %s", resp.Status)
	}
	var out struct {
		PublicKeyPEM string `json:"public_key_pem"`
		Fingerprint  string `json:"fingerprint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", err
	}
	return out.PublicKeyPEM, out.Fingerprint, nil
}
