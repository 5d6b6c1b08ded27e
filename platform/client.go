package platform

import (
	"fmt"
	"time"

	nomadapi "github.com/hashicorp/nomad/api"
)

type Config struct {
	Addr        string
	EvalTimeout time.Duration // max wait for scheduler acknowledgement per update
}

// Client talks to the function execution platform. Each target function is
// a Nomad job whose task fetches its code from an artifact URL.
type Client struct {
	api         *nomadapi.Client
	evalTimeout time.Duration
	poll        time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	apiCfg := nomadapi.DefaultConfig()
	apiCfg.Address = cfg.Addr

	api, err := nomadapi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("nomad client: %w", err)
	}

	timeout := cfg.EvalTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		api:         api,
		evalTimeout: timeout,
		poll:        500 * time.Millisecond,
	}, nil
}

// Healthy checks connectivity to Nomad.
func (c *Client) Healthy() error {
	_, err := c.api.Agent().NodeName()
	return err
}
