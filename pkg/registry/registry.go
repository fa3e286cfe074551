package registry

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/packmule-io/packmule/pkg/cleanhttp"
	"github.com/pkg/errors"
)

var (
	// ErrNetwork covers transport and HTTP level failures talking to
	// the registry. Callers treat it as fatal for the whole run.
	ErrNetwork = errors.New("network error")

	// ErrNoVersions is the registry legitimately answering with an
	// empty catalog. Kept distinct from ErrNetwork so the two abort
	// paths stay distinguishable in the summary.
	ErrNoVersions = errors.New("no versions available")

	// ErrNoArchive means a selected version carries no installable
	// archive file.
	ErrNoArchive = errors.New("no archive found for version")
)

const DefaultUserAgent = "packmule/1.0"

// Client queries a Modrinth style versions endpoint.
type Client struct {
	URL       string
	UserAgent string

	logger hclog.Logger
	client *http.Client
}

func NewClient(url string, l hclog.Logger) *Client {
	if l == nil {
		l = hclog.L()
	}

	return &Client{
		URL:       url,
		UserAgent: DefaultUserAgent,
		logger:    l,
		client:    cleanhttp.DefaultClient,
	}
}

// FetchVersions issues one GET against the versions endpoint and decodes
// the catalog. There is no retry; a flaky registry aborts the run.
func (c *Client) FetchVersions(ctx context.Context) ([]Version, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.URL, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrNetwork, "building request: %v", err)
	}

	req.Header.Set("User-Agent", c.UserAgent)

	c.logger.Debug("fetching versions", "url", c.URL)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrNetwork, "fetching versions: %v", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrNetwork, "registry returned status %d", resp.StatusCode)
	}

	var versions []Version

	err = json.NewDecoder(resp.Body).Decode(&versions)
	if err != nil {
		return nil, errors.Wrapf(ErrNetwork, "decoding versions: %v", err)
	}

	c.logger.Debug("fetched versions", "count", len(versions))

	return versions, nil
}
