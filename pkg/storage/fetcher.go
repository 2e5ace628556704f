package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrHostNotAllowed is returned for image URLs outside the permitted hosts or on a private network
var ErrHostNotAllowed = errors.New("image host not allowed")

// ImageFetcher retrieves stored image bytes. Images that carry a storage key are read
// straight from the bucket when an S3 client is configured, everything else by URL.
type ImageFetcher struct {
	httpClient   *http.Client
	s3           *S3Client
	maxBytes     int64
	allowedHosts map[string]struct{}
}

// NewImageFetcher creates an ImageFetcher. s3Client may be nil.
// Until AllowHosts is called, URLs resolving to loopback, private or link-local
// addresses are refused.
func NewImageFetcher(s3Client *S3Client, timeout time.Duration, maxBytes int64) *ImageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &ImageFetcher{s3: s3Client, maxBytes: maxBytes}
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: f.checkDial}
	f.httpClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("too many redirects")
			}
			return f.checkURL(req.URL)
		},
	}
	return f
}

// AllowHosts limits URL fetches to the named hosts, which are then trusted
// regardless of the address they resolve to. Empty names are ignored.
func (f *ImageFetcher) AllowHosts(hosts ...string) *ImageFetcher {
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if f.allowedHosts == nil {
			f.allowedHosts = make(map[string]struct{})
		}
		f.allowedHosts[h] = struct{}{}
	}
	return f
}

// Fetch returns the image bytes for rawURL / storageKey
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL, storageKey string) ([]byte, error) {
	if storageKey != "" && f.s3 != nil {
		return f.s3.Download(ctx, storageKey, f.maxBytes)
	}
	if rawURL == "" {
		return nil, fmt.Errorf("image has neither url nor storage key")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	if err := f.checkURL(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return readLimited(resp.Body, f.maxBytes)
}

func (f *ImageFetcher) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrHostNotAllowed, u.Scheme)
	}
	if f.allowedHosts == nil {
		return nil
	}
	if _, ok := f.allowedHosts[strings.ToLower(u.Hostname())]; !ok {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	return nil
}

// checkDial runs after DNS resolution, so a public name pointing at an internal
// address is refused too
func (f *ImageFetcher) checkDial(network, address string, _ syscall.RawConn) error {
	if f.allowedHosts != nil {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	return nil
}
