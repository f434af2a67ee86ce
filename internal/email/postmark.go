package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
)

// Client sends escalation email through Postmark. It backs urgent failure
// alerts when push delivery reaches no device.
type Client struct {
	serverToken string
	fromEmail   string
	alertEmail  string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Postmark endpoint, for tests.
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

// NewClient creates an email client. alertEmail is the duty address that
// receives urgent escalations.
func NewClient(serverToken, fromEmail, alertEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		alertEmail:  alertEmail,
		apiURL:      "https://api.postmarkapp.com/email",
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token and alert address are set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.alertEmail != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendUrgentAlert emails an urgent failure notification to the duty
// address.
func (c *Client) SendUrgentAlert(title, body string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token or alert address")
	}

	textBody := fmt.Sprintf("%s\n\n%s\n\nNo push-subscribed device could be reached.", title, body)
	htmlBody := fmt.Sprintf(
		`<p dir="rtl"><strong>%s</strong></p><p dir="rtl">%s</p><p>No push-subscribed device could be reached.</p>`,
		html.EscapeString(title), html.EscapeString(body),
	)

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       c.alertEmail,
		Subject:  title,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", c.apiURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
