package httpclient

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty for HTTP requests to the marketplace backend and the
// gateway's IPN endpoints.
type Client struct {
	r *resty.Client
}

// New creates a new HTTP client with sensible defaults.
func New() *Client {
	r := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{r: r}
}

// WithBaseURL sets the base URL prepended to request paths.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.r.SetBaseURL(baseURL)
	return c
}

// WithTimeout sets a custom timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.r.SetTimeout(d)
	return c
}

// WithBearerToken sets a static bearer token for authentication.
func (c *Client) WithBearerToken(token string) *Client {
	c.r.SetAuthToken(token)
	return c
}

// WithTokenSource installs a per-request bearer token getter. The session
// token can rotate mid-flow, so it is resolved on every request.
func (c *Client) WithTokenSource(getToken func() string) *Client {
	c.r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if token := getToken(); token != "" {
			req.SetAuthToken(token)
		}
		return nil
	})
	return c
}

// WithHeader sets a custom header.
func (c *Client) WithHeader(key, value string) *Client {
	c.r.SetHeader(key, value)
	return c
}

// Get sends a GET request and returns the response body.
func (c *Client) Get(url string) ([]byte, error) {
	resp, err := c.r.R().Get(url)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// GetWithQuery sends a GET request with query parameters and returns the
// response body plus status code.
func (c *Client) GetWithQuery(url string, query map[string]string) ([]byte, int, error) {
	resp, err := c.r.R().SetQueryParams(query).Get(url)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body(), resp.StatusCode(), nil
}

// Post sends a POST request with JSON body.
func (c *Client) Post(url string, body interface{}) ([]byte, error) {
	req := c.r.R().SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(url)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Delete sends a DELETE request.
func (c *Client) Delete(url string) ([]byte, error) {
	resp, err := c.r.R().Delete(url)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// StatusOK reports whether an HTTP status code is in the 2xx range.
func StatusOK(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

// Raw returns the underlying resty client for advanced usage.
func (c *Client) Raw() *resty.Client {
	return c.r
}
