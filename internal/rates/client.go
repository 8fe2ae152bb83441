package rates

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jonathan/currency-annotator/internal/fetch"
	"github.com/jonathan/currency-annotator/internal/types"
)

// LocalClient calls a Handler in the same process.
type LocalClient struct {
	handler *Handler
}

// NewLocalClient creates a LocalClient.
func NewLocalClient(handler *Handler) *LocalClient {
	return &LocalClient{handler: handler}
}

// GetRates implements ratecache.Client.
func (c *LocalClient) GetRates(ctx context.Context, base string, symbols []string) (map[string]float64, error) {
	resp := c.handler.Handle(ctx, types.RateRequest{Type: types.RequestTypeGetRates, Base: base, Symbols: symbols})
	return fromResponse(base, resp)
}

// RemoteClient posts requests to a rate worker's /rates endpoint.
type RemoteClient struct {
	endpoint string
	opts     *fetch.Options
}

// NewRemoteClient creates a client for the worker at baseURL.
func NewRemoteClient(baseURL string, opts *fetch.Options) *RemoteClient {
	return &RemoteClient{endpoint: strings.TrimRight(baseURL, "/") + "/rates", opts: opts}
}

// GetRates implements ratecache.Client.
func (c *RemoteClient) GetRates(ctx context.Context, base string, symbols []string) (map[string]float64, error) {
	req := types.RateRequest{Type: types.RequestTypeGetRates, Base: base, Symbols: symbols}

	var resp types.RateResponse
	result, err := fetch.JSON(ctx, c.endpoint, req, &resp, c.opts)
	if err != nil {
		// Error replies still carry a protocol response.
		if result != nil && json.Unmarshal(result.Body, &resp) == nil && resp.Error != "" {
			return fromResponse(base, resp)
		}
		return nil, &RateError{Base: base, Message: MsgUnavailable, Cause: err}
	}
	return fromResponse(base, resp)
}

func fromResponse(base string, resp types.RateResponse) (map[string]float64, error) {
	if !resp.OK || resp.Rates == nil {
		msg := resp.Error
		if msg == "" {
			msg = MsgUnavailable
		}
		return nil, &RateError{Base: base, Message: msg}
	}
	return resp.Rates, nil
}
