package datasync_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

// Messenger
type mockMessenger struct {
	mock.Mock
}

func (m *mockMessenger) Address() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockMessenger) Send(
	ctx context.Context, peer string, env wire.Envelope,
) error {
	args := m.Called(ctx, peer, env)
	return args.Error(0)
}

func (m *mockMessenger) Close() {}

type sentRequest struct {
	peer string
	kind wire.Kind
	req  wire.GetDataRequest
}

// sentRequests returns the data requests sent through the mock.
func (m *mockMessenger) sentRequests() []sentRequest {
	reqs := make([]sentRequest, 0)
	for _, call := range m.Calls {
		if call.Method != "Send" {
			continue
		}
		env := call.Arguments.Get(2).(wire.Envelope)
		req, err := wire.DecodeGetDataRequest(env.Payload)
		if err != nil {
			continue
		}
		reqs = append(reqs, sentRequest{
			peer: call.Arguments.String(1),
			kind: env.Kind,
			req:  *req,
		})
	}
	return reqs
}

func newMockMessenger() *mockMessenger {
	m := &mockMessenger{}
	m.On("Address").Return(localAddr)
	return m
}
