package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/mesh-intelligence/shelf/internal/codec"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

const (
	defaultHttpTimeout        = 60 * time.Second
	defaultHttpConnectTimeout = 5 * time.Second
	defaultHttpTlsTimeout     = 5 * time.Second

	// defaultMaxListBytes bounds the size of a fetched document.
	defaultMaxListBytes = 32 << 20
)

// DefaultClient returns an HTTP client with connect, TLS and overall
// timeouts. It also serves file:// URLs from the local file system.
func DefaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

// HTTPFetcher retrieves list documents over HTTP and decodes them by content
// type or URL extension.
type HTTPFetcher struct {
	Client  *http.Client
	Options codec.Options
	// Header is added to every request.
	Header http.Header
	// MaxBytes bounds the response body. Larger bodies are rejected rather
	// than decoded partially. Zero means 32 MiB.
	MaxBytes int64
}

var _ types.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher using DefaultClient.
func NewHTTPFetcher(opts codec.Options) *HTTPFetcher {
	return &HTTPFetcher{Client: DefaultClient(), Options: opts}
}

// Fetch GETs url and decodes the body into records. Non-2xx responses are
// errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]types.Record, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "application/json, application/x-plist, application/yaml, application/msgpack;q=0.9, */*;q=0.5")
	for k, vs := range f.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := f.Client
	if client == nil {
		client = DefaultClient()
	}
	r, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()

	if r.StatusCode < 200 || r.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: %s", url, r.Status)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = defaultMaxListBytes
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("reading %s: body exceeds %d bytes: %w", url, limit, types.ErrFetch)
	}

	format := codec.Detect(r.Header.Get("Content-Type"), req.URL.Path, body)
	glog.V(2).Infof("[fetch]%s %d bytes as %s\n", url, len(body), format)
	return codec.Decode(body, format, f.Options)
}
