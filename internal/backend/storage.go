package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// clubLogoBucket holds club logo images, keyed by club id and path.
const clubLogoBucket = "club-logos"

// UploadClubLogo uploads a club logo, overwriting any existing object at the
// same path.
func (c *Client) UploadClubLogo(ctx context.Context, clubID, path string, data []byte, contentType string) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s/%s", c.baseURL, clubLogoBucket, clubID, strings.TrimLeft(path, "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.authToken())
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("logo upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}
	return nil
}

// ClubLogoURL returns the public URL for a club logo.
func (c *Client) ClubLogoURL(clubID, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s/%s", c.baseURL, clubLogoBucket, clubID, strings.TrimLeft(path, "/"))
}
