package consul

import (
	"fmt"
	"net/http"
	"time"

	consulapi "github.com/hashicorp/consul/api"
)

// Client wraps the Consul catalog for the two things the dispatcher
// needs: a connectivity check and orchestrator endpoint resolution.
type Client struct {
	api *consulapi.Client
}

func NewClient(addr string) (*Client, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr
	cfg.HttpClient = &http.Client{Timeout: 10 * time.Second}

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &Client{api: client}, nil
}

// Healthy checks connectivity to Consul.
func (c *Client) Healthy() error {
	_, err := c.api.Status().Leader()
	return err
}

// ResolveService returns a base URL for a passing instance of the named
// service. Used to locate the pipeline orchestrator when no explicit
// callback URL is configured.
func (c *Client) ResolveService(serviceName string) (string, error) {
	entries, _, err := c.api.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", serviceName, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("resolve %s: no passing instances", serviceName)
	}

	entry := entries[0]
	addr := entry.Service.Address
	if addr == "" {
		addr = entry.Node.Address
	}
	return fmt.Sprintf("http://%s:%d", addr, entry.Service.Port), nil
}
