package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ServiceError is returned when the service answers with a non-success
// status code. Message is the response body as the operator should see it.
type ServiceError struct {
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("status service returned %d: %s", e.Code, e.Message)
}

// Client talks to the fleet status service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Status fetches the current fleet snapshot. Anything but a 200 with a
// decodable body is an error.
func (c *Client) Status(ctx context.Context) (Report, error) {
	resp, err := c.get(ctx, "/status", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &ServiceError{Code: resp.StatusCode, Message: errorMessage(b)}
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("could not decode status: %w", err)
	}

	if report == nil {
		return nil, errors.New("status response is null")
	}

	if err := report.Validate(); err != nil {
		return nil, err
	}

	return report, nil
}

// Add registers host with the service.
func (c *Client) Add(ctx context.Context, host string) error {
	return c.hostCall(ctx, "/add", host)
}

// Remove deregisters host from the service.
func (c *Client) Remove(ctx context.Context, host string) error {
	return c.hostCall(ctx, "/remove", host)
}

func (c *Client) hostCall(ctx context.Context, path, host string) error {
	resp, err := c.get(ctx, path, url.Values{"host": []string{host}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	logrus.Debugf("%s %s: %d %s", path, host, resp.StatusCode, strings.TrimSpace(string(b)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServiceError{Code: resp.StatusCode, Message: errorMessage(b)}
	}

	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	return c.httpClient.Do(req)
}

// errorMessage turns an error body into display text. A JSON string is
// unquoted, anything else is kept as sent minus the trailing newline
// http.Error appends.
func errorMessage(b []byte) string {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}

	return strings.TrimRight(string(b), "\r\n")
}
