package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGateway delivers notifications through an HTTP messaging API
type HTTPGateway struct {
	apiURL string
	apiKey string
	sender string
	client *http.Client
}

// HTTPGatewayConfig holds configuration for the HTTP notification gateway
type HTTPGatewayConfig struct {
	APIURL  string
	APIKey  string
	Sender  string
	Timeout time.Duration
}

// NewHTTPGateway creates a new HTTPGateway client
func NewHTTPGateway(config HTTPGatewayConfig) *HTTPGateway {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		apiURL: config.APIURL,
		apiKey: config.APIKey,
		sender: config.Sender,
		client: &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Email   string `json:"email,omitempty"`
	From    string `json:"from"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

type sendResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

// Send delivers one message through the messaging API
func (g *HTTPGateway) Send(msg Message) error {
	payload := sendRequest{
		To:      msg.Recipient,
		Email:   msg.Email,
		From:    g.sender,
		Subject: msg.Subject,
		Message: msg.Body,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("notification API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		// 2xx with an unparseable body still counts as delivered
		return nil
	}
	if parsed.Status != "" && parsed.Status != "success" {
		return fmt.Errorf("notification API rejected message: %s", parsed.Comment)
	}
	return nil
}
