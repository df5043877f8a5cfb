package transport

import (
	"context"
	"fmt"
	"net/url"

	"github.com/orchestra-mcp/metax/src/types"
	"github.com/rs/zerolog"
)

const (
	registerListenerPath   = "db/register_listener"
	unregisterListenerPath = "db/unregister_listener"
)

// API builds metax_web_api endpoints from connection params and calls them
// through a Transport. It satisfies hub.Coordinator.
type API struct {
	transport types.Transport
	params    types.ConnectionParams
	logger    zerolog.Logger
}

// NewAPI creates an API bound to params.
func NewAPI(t types.Transport, params types.ConnectionParams, logger zerolog.Logger) *API {
	return &API{
		transport: t,
		params:    params,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Params returns the connection params the API was built with.
func (a *API) Params() types.ConnectionParams { return a.params }

// RegisterListenerURL is the endpoint that starts update pushes for id.
func (a *API) RegisterListenerURL(id types.ResourceID) string {
	return a.endpoint(registerListenerPath, id)
}

// UnregisterListenerURL is the endpoint that stops update pushes for id.
func (a *API) UnregisterListenerURL(id types.ResourceID) string {
	return a.endpoint(unregisterListenerPath, id)
}

func (a *API) endpoint(path string, id types.ResourceID) string {
	return a.params.ServiceURL() + path + "?id=" + url.QueryEscape(id.String())
}

// RegisterListener asks the service to push updates of id to this client.
func (a *API) RegisterListener(ctx context.Context, id types.ResourceID) error {
	u := a.RegisterListenerURL(id)
	if _, err := a.transport.Get(ctx, u, a.params.AccessToken); err != nil {
		return fmt.Errorf("register listener %s: %w", id, err)
	}
	a.logger.Debug().Str("uuid", id.String()).Msg("remote listener registered")
	return nil
}

// UnregisterListener stops update pushes for id.
func (a *API) UnregisterListener(ctx context.Context, id types.ResourceID) error {
	u := a.UnregisterListenerURL(id)
	if _, err := a.transport.Get(ctx, u, a.params.AccessToken); err != nil {
		return fmt.Errorf("unregister listener %s: %w", id, err)
	}
	a.logger.Debug().Str("uuid", id.String()).Msg("remote listener unregistered")
	return nil
}
