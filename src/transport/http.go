// Package transport implements the metax_web_api HTTP and websocket plumbing.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/orchestra-mcp/metax/src/types"
	"github.com/valyala/fasthttp"
)

const authScheme = "Metax-Auth "

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return types.ErrTransport }

// HTTPTransport performs authenticated requests with a fasthttp client.
type HTTPTransport struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// NewHTTPTransport creates a transport. A zero timeout means requests are
// bounded only by the caller's context.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &fasthttp.Client{
			Name:                "metax-sync",
			MaxIdleConnDuration: 30 * time.Second,
		},
		timeout: timeout,
	}
}

// Get issues an authenticated GET.
func (t *HTTPTransport) Get(ctx context.Context, url, token string) (*types.Response, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAuthorization, authScheme+token)
	return t.do(ctx, req)
}

// Post issues an authenticated POST. contentType is sent as
// Metax-Content-Type, the MIME type metax stores the object under.
func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte, contentType, token string) (*types.Response, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set(fasthttp.HeaderAuthorization, authScheme+token)
	req.Header.Set("Metax-Content-Type", contentType)
	req.SetBody(body)
	return t.do(ctx, req)
}

func (t *HTTPTransport) do(ctx context.Context, req *fasthttp.Request) (*types.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	method := string(req.Header.Method())
	uri := req.URI().String()

	var err error
	if deadline, ok := t.deadline(ctx); ok {
		err = t.client.DoDeadline(req, resp, deadline)
	} else {
		err = t.client.Do(req, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", types.ErrTransport, method, uri, err)
	}

	code := resp.StatusCode()
	if code < 200 || code >= 300 {
		return nil, &StatusError{Method: method, URL: uri, Code: code, Body: string(resp.Body())}
	}
	return &types.Response{
		StatusCode: code,
		Body:       append([]byte(nil), resp.Body()...),
	}, nil
}

// deadline picks the earlier of the context deadline and the transport timeout.
func (t *HTTPTransport) deadline(ctx context.Context) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if t.timeout > 0 {
		own := time.Now().Add(t.timeout)
		if !ok || own.Before(deadline) {
			return own, true
		}
	}
	return deadline, ok
}
