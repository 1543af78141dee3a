package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brettbedarf/manifestfs"
	"github.com/brettbedarf/manifestfs/internal/util"
	"github.com/google/uuid"
)

type HTTPMethod = string

const (
	HTTPMethodGet  HTTPMethod = "GET"
	HTTPMethodHead HTTPMethod = "HEAD"
)

// RequestIDHeader carries a per-request id so server logs can be correlated with ours
const RequestIDHeader = "X-Request-Id"

// HTTPClient is the subset of *http.Client used by HTTPBackend
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProvider builds HTTPBackends for one URL scheme. The descriptor prefix is the
// scheme itself, so "https://host/a" is split into "https" and "//host/a" and
// rejoined here.
type HTTPProvider struct {
	client HTTPClient
	scheme string
	uid    uint32
	gid    uint32
	now    func() time.Time
}

// NewHTTPProvider returns a provider for scheme ("http" or "https") issuing requests through client
func NewHTTPProvider(client HTTPClient, scheme string, uid, gid uint32) *HTTPProvider {
	return &HTTPProvider{client: client, scheme: scheme, uid: uid, gid: gid, now: time.Now}
}

func (p *HTTPProvider) NewBackend(pointer string) (manifestfs.Backend, error) {
	addr, err := validateURL(p.scheme + ":" + strings.TrimSpace(pointer))
	if err != nil {
		return nil, err
	}
	return &HTTPBackend{
		url:    addr,
		client: p.client,
		uid:    p.uid,
		gid:    p.gid,
		now:    p.now,
	}, nil
}

func validateURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	if u.User != nil {
		return "", errors.New("url must not contain user info")
	}
	return u.String(), nil
}

// HTTPBackend implements [manifestfs.Backend] for a remote resource.
// Every call issues a fresh request; nothing is cached between calls.
type HTTPBackend struct {
	url    string
	client HTTPClient
	uid    uint32
	gid    uint32
	now    func() time.Time
}

// URL returns the resource address
func (h *HTTPBackend) URL() string {
	return h.url
}

func (h *HTTPBackend) newRequest(ctx context.Context, method HTTPMethod) (*http.Request, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.url, nil)
	if err != nil {
		return nil, "", err
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	return req, reqID, nil
}

// do sends a request and fails with ErrIO unless the status is 2xx.
// The caller must close the returned body.
func (h *HTTPBackend) do(ctx context.Context, method HTTPMethod) (*http.Response, error) {
	logger := util.GetLogger("HTTPBackend")

	req, reqID, err := h.newRequest(ctx, method)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", manifestfs.ErrIO, method, h.url, err)
	}
	logger.Debug().Str("method", method).Str("url", h.url).Str("request_id", reqID).Msg("request")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s %s: %w", manifestfs.ErrIO, method, h.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		logger.Warn().Str("request_id", reqID).Int("status", resp.StatusCode).Msg("unexpected status")
		return nil, fmt.Errorf("%w: %s %s: status %s", manifestfs.ErrIO, method, h.url, resp.Status)
	}
	return resp, nil
}

func (h *HTTPBackend) Attributes(ctx context.Context) (*manifestfs.Metadata, error) {
	resp, err := h.do(ctx, HTTPMethodHead)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var size uint64
	if resp.ContentLength > 0 {
		size = uint64(resp.ContentLength)
	}
	mtime := h.now()
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			mtime = t
		}
	}

	return &manifestfs.Metadata{
		Size:   size,
		Blocks: manifestfs.BlocksFor(size),
		Kind:   manifestfs.FileKind,
		Perm:   0o644,
		Nlink:  1,
		Uid:    h.uid,
		Gid:    h.gid,
		Atime:  mtime,
		Mtime:  mtime,
		Ctime:  mtime,
	}, nil
}

// Read fetches the whole resource and copies the bytes at offset into p.
// A body shorter than offset yields 0 bytes.
func (h *HTTPBackend) Read(ctx context.Context, offset int64, p []byte) (int, error) {
	if offset < 0 {
		return 0, nil
	}
	resp, err := h.do(ctx, HTTPMethodGet)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: reading %s: %w", manifestfs.ErrIO, h.url, err)
	}

	// Only a clean EOF ends a short read; a body cut below its Content-Length is an error
	var n int
	for n < len(p) {
		m, err := resp.Body.Read(p[n:])
		n += m
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("%w: reading %s: %w", manifestfs.ErrIO, h.url, err)
		}
	}
	return n, nil
}

var _ manifestfs.Backend = (*HTTPBackend)(nil)
