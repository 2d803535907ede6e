package esplora

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/tdex-network/tdex-p2p/pkg/circuitbreaker"
	"github.com/tdex-network/tdex-p2p/pkg/util"
)

type esplora struct {
	apiURL string
	cb     *gobreaker.CircuitBreaker
}

// NewService returns a new esplora service as a ports.Explorer interface.
func NewService(apiURL string) (ports.Explorer, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("missing explorer url")
	}
	apiURL = strings.TrimSuffix(apiURL, "/")
	service := &esplora{
		apiURL: apiURL,
		cb:     circuitbreaker.NewCircuitBreaker("esplora"),
	}

	if err := service.healthCheck(); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	return service, nil
}

func (e *esplora) healthCheck() error {
	_, err := e.GetBlockHeight()
	return err
}

// get performs a GET request through the circuit breaker. Status codes
// other than 200 and 404 count as failures.
func (e *esplora) get(path string) (int, string, error) {
	url := fmt.Sprintf("%s%s", e.apiURL, path)
	type result struct {
		status int
		body   string
	}

	res, err := e.cb.Execute(func() (interface{}, error) {
		status, body, err := util.NewHTTPRequest(http.MethodGet, url, "", nil)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK && status != http.StatusNotFound {
			return nil, fmt.Errorf("%s: %d %s", path, status, body)
		}
		return result{status, body}, nil
	})
	if err != nil {
		return 0, "", err
	}
	r := res.(result)
	return r.status, r.body, nil
}
