package report

import (
	"fmt"

	"slipway/consul"
)

// ResolveURL picks the orchestrator callback URL: the explicit one when
// configured, otherwise a passing instance from the consul catalog.
func ResolveURL(explicit, service string, c *consul.Client) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if c == nil {
		return "", fmt.Errorf("report: no orchestrator callback configured")
	}
	base, err := c.ResolveService(service)
	if err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	return base + "/api/jobs/result", nil
}
