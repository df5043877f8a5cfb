package types

import (
	"net"
	"net/url"
	"strconv"
)

// ConnectionParams describes how to reach a metax_web_api instance.
// A copy is taken when a connection starts and reused verbatim for every
// automatic reconnection.
type ConnectionParams struct {
	Host        string
	Port        int
	Encryption  bool
	AccessToken string
	Secure      bool
}

// NewConnectionParams builds params in the order the service API takes them.
func NewConnectionParams(host string, port int, encryption bool, token string, secure bool) ConnectionParams {
	return ConnectionParams{
		Host:        host,
		Port:        port,
		Encryption:  encryption,
		AccessToken: token,
		Secure:      secure,
	}
}

// Scheme returns the HTTP scheme.
func (p ConnectionParams) Scheme() string {
	if p.Secure {
		return "https"
	}
	return "http"
}

// WebsocketScheme returns the duplex channel scheme.
func (p ConnectionParams) WebsocketScheme() string {
	if p.Secure {
		return "wss"
	}
	return "ws"
}

// Address returns host:port.
func (p ConnectionParams) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ServiceURL is the base for HTTP endpoints, with a trailing slash.
func (p ConnectionParams) ServiceURL() string {
	return p.Scheme() + "://" + p.Address() + "/"
}

// WebsocketURL is the duplex channel address including the access token.
func (p ConnectionParams) WebsocketURL() string {
	return p.WebsocketScheme() + "://" + p.Address() + "?token=" + url.QueryEscape(p.AccessToken)
}

