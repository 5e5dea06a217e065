package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quotedesk/quotedesk/internal/config"
)

// Client sends messages through the Graph API.
type Client struct {
	apiURL        string
	token         string
	phoneNumberID string
	httpClient    *http.Client
}

func NewClient(cfg config.WhatsAppConfig) *Client {
	return &Client{
		apiURL:        cfg.APIURL,
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// SendText delivers a plain text message to a phone number, returning the
// Cloud API message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: body},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp send failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var decoded sendResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil {
			return "", fmt.Errorf("whatsapp api error %d: %s", decoded.Error.Code, decoded.Error.Message)
		}
		return "", fmt.Errorf("whatsapp api returned status %d", resp.StatusCode)
	}
	if len(decoded.Messages) == 0 {
		return "", fmt.Errorf("whatsapp api returned no message id")
	}
	return decoded.Messages[0].ID, nil
}
