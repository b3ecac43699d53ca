package camera

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/tauraamui/xerror"
)

// ErrTransport is matched by every error returned from Fetch.
var ErrTransport = errors.New("camera transport failure")

const TransportKind = xerror.Kind("transport")

// Client fetches single still frames from a camera's snapshot endpoint.
type Client interface {
	UUID() string
	Address() string
	Fetch(context.Context) ([]byte, error)
}

type client struct {
	uuid string
	sett Settings
	hc   *http.Client
}

func NewClient(settings Settings) Client {
	return &client{
		uuid: uuid.NewString(),
		sett: settings,
		hc:   &http.Client{Timeout: settings.Timeout},
	}
}

func (c *client) UUID() string {
	return c.uuid
}

func (c *client) Address() string {
	return c.sett.Address
}

// Fetch performs one GET round trip and returns the complete response body.
// There is no retry and nothing is cached between calls.
func (c *client) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sett.Address, nil)
	if err != nil {
		return nil, transportError("unable to build request for [%s]: %v", c.sett.Address, err)
	}

	resp, err := doRequest(c.hc, req)
	if err != nil {
		return nil, transportError("unable to fetch frame from [%s]: %v", c.sett.Address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, transportError("unexpected response status from [%s]: %s", c.sett.Address, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("unable to read frame body from [%s]: %v", c.sett.Address, err)
	}

	if len(data) == 0 {
		return nil, transportError("empty frame body from [%s]", c.sett.Address)
	}

	return data, nil
}

var doRequest = func(hc *http.Client, req *http.Request) (*http.Response, error) {
	return hc.Do(req)
}

func transportError(format string, a ...interface{}) error {
	return xerror.Errorf("%w: "+format, append([]interface{}{ErrTransport}, a...)...).AsKind(TransportKind)
}
