package cleanhttp

import (
	"context"
	"net"
	"net/http"
	"time"
)

var DefaultTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	DisableCompression:    true,
}

var DefaultClient = &http.Client{
	Transport: DefaultTransport,
}

func Do(req *http.Request) (*http.Response, error) {
	return DefaultClient.Do(req)
}

// Get issues a GET for url with the given User-Agent, bound to ctx.
func Get(ctx context.Context, url, agent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	if agent != "" {
		req.Header.Set("User-Agent", agent)
	}

	return DefaultClient.Do(req)
}

// Head issues a HEAD for url, used for size probing. The short timeout
// keeps a slow mirror from stalling plan estimation.
func Head(ctx context.Context, url, agent string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "HEAD", url, nil)
	if err != nil {
		return nil, err
	}

	if agent != "" {
		req.Header.Set("User-Agent", agent)
	}

	resp, err := DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	resp.Body.Close()

	return resp, nil
}
