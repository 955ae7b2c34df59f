package tools

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"
)

const HTTPRequestName = "http_request"

// Doer is the part of *http.Client the fetch tool needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type HTTPRequestOptions struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

// HTTPRequest lets the model fetch reference material (AWS docs, NIST CSF pages).
type HTTPRequest struct {
	client Doer
	opt    HTTPRequestOptions
}

// NewHTTPRequest builds the fetch tool. A nil client gets an *http.Client
// using opt.Timeout that refuses to dial loopback, link-local and private
// addresses.
func NewHTTPRequest(client Doer, opt HTTPRequestOptions) *HTTPRequest {
	if opt.Timeout <= 0 {
		opt.Timeout = 20 * time.Second
	}
	if opt.MaxBodyBytes <= 0 {
		opt.MaxBodyBytes = 64 * 1024
	}
	if opt.UserAgent == "" {
		opt.UserAgent = "secadvisor/1.0"
	}
	if client == nil {
		client = newGuardedClient(opt.Timeout)
	}
	return &HTTPRequest{client: client, opt: opt}
}

func newGuardedClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control:   denyInternalAddrs,
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	// a proxy would hide the real destination from the dial check
	tr.Proxy = nil
	tr.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: tr}
}

// denyInternalAddrs runs after DNS resolution, so redirects and rebinding
// are checked against the address actually dialed.
func denyInternalAddrs(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return fmt.Errorf("dial %s: destination address not allowed", address)
	}
	return nil
}

func (t *HTTPRequest) Name() string { return HTTPRequestName }

func (t *HTTPRequest) Description() string {
	return "Make an HTTP request to a URL and return the status code, content type and response body. " +
		"Use it to retrieve AWS documentation, security best-practice guides or framework references."
}

func (t *HTTPRequest) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute http or https URL to request.",
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method. Defaults to GET.",
				"enum":        []string{"GET", "HEAD", "POST"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"description":          "Optional request headers.",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Optional request body.",
			},
		},
		"required": []string{"url"},
	}
}

type fetchInput struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
}

func parseFetchInput(in map[string]any) (fetchInput, error) {
	var out fetchInput

	raw, _ := in["url"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return out, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return out, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return out, fmt.Errorf("url has no host")
	}
	out.URL = u.String()

	method, _ := in["method"].(string)
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost:
	default:
		return out, fmt.Errorf("unsupported method %q", method)
	}
	out.Method = method

	if hs, ok := in["headers"].(map[string]any); ok {
		out.Headers = make(map[string]string, len(hs))
		for k, v := range hs {
			if s, ok := v.(string); ok {
				out.Headers[k] = s
			}
		}
	}
	out.Body, _ = in["body"].(string)
	return out, nil
}

func (t *HTTPRequest) Invoke(ctx context.Context, input map[string]any) (string, error) {
	in, err := parseFetchInput(input)
	if err != nil {
		return "", err
	}

	var body io.Reader
	if in.Body != "" {
		body = strings.NewReader(in.Body)
	}
	req, err := http.NewRequestWithContext(ctx, in.Method, in.URL, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", t.opt.UserAgent)
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}

	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", in.Method, in.URL, err)
	}
	defer res.Body.Close()

	// read one extra byte to detect truncation
	raw, err := io.ReadAll(io.LimitReader(res.Body, t.opt.MaxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	truncated := int64(len(raw)) > t.opt.MaxBodyBytes
	if truncated {
		raw = cutAtRune(raw[:t.opt.MaxBodyBytes])
	}

	// tool results must be valid UTF-8
	return formatFetchResult(res, strings.ToValidUTF8(string(raw), "\uFFFD"), truncated), nil
}

// cutAtRune drops a trailing partial UTF-8 sequence.
func cutAtRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

func formatFetchResult(res *http.Response, body string, truncated bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status Code: %d\n", res.StatusCode)
	if ct := res.Header.Get("Content-Type"); ct != "" {
		fmt.Fprintf(&b, "Content-Type: %s\n", ct)
	}
	if loc := res.Header.Get("Location"); loc != "" {
		fmt.Fprintf(&b, "Location: %s\n", loc)
	}

	b.WriteString("Body:\n")
	b.WriteString(body)
	if truncated {
		b.WriteString("\n[body truncated]")
	}
	return b.String()
}
