package circuitbreaker_test

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-p2p/pkg/circuitbreaker"
)

func TestCircuitBreaker(t *testing.T) {
	cb := circuitbreaker.NewCircuitBreaker("peer")
	require.Equal(t, "peer", cb.Name())

	failure := errors.New("connection refused")
	for i := 0; i <= circuitbreaker.MaxNumOfFailingRequests; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, failure })
		require.ErrorIs(t, err, failure)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}
