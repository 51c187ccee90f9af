package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SMSClient sends plain-text messages through an HTTP SMS gateway. The
// gateway is assumed reliable at the cost of latency and per-message cost,
// which is what makes it the fallback channel.
type SMSClient struct {
	gatewayURL string
	httpc      *http.Client
}

// NewSMSClient creates a client for the given gateway endpoint.
func NewSMSClient(gatewayURL string) *SMSClient {
	return &SMSClient{
		gatewayURL: gatewayURL,
		httpc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Send posts one message to the gateway.
func (c *SMSClient) Send(number, text string) error {
	resp, err := c.httpc.PostForm(c.gatewayURL, url.Values{
		"to":      {number},
		"message": {text},
	})
	if err != nil {
		return fmt.Errorf("sms send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// HTTPProbe checks reachability by fetching a well-known no-content URL.
type HTTPProbe struct {
	url   string
	httpc *http.Client
}

// NewHTTPProbe creates a probe against the standard connectivity-check URL.
func NewHTTPProbe() *HTTPProbe {
	return &HTTPProbe{
		url:   "http://connectivitycheck.gstatic.com/generate_204",
		httpc: &http.Client{Timeout: 3 * time.Second},
	}
}

// IsConnected reports whether the probe URL is reachable.
func (p *HTTPProbe) IsConnected() (bool, string) {
	resp, err := p.httpc.Head(p.url)
	if err != nil {
		return false, ""
	}
	resp.Body.Close()
	return true, "http"
}
