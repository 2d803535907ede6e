package p2pinterface_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

const (
	localAddr = "/ip4/127.0.0.1/tcp/9945"
	peerAddr  = "/ip4/127.0.0.1/tcp/9946"
)

type mockMessenger struct {
	mock.Mock
}

func (m *mockMessenger) Address() string {
	return localAddr
}

func (m *mockMessenger) Send(ctx context.Context, peer string, env wire.Envelope) error {
	args := m.Called(ctx, peer, env)
	return args.Error(0)
}

func (m *mockMessenger) Close() {}

type mockDataRequestHandler struct {
	mock.Mock
}

func (m *mockDataRequestHandler) HandleGetDataRequest(
	ctx context.Context, req wire.GetDataRequest,
) (*wire.GetDataResponse, error) {
	args := m.Called(ctx, req)
	var res *wire.GetDataResponse
	if a := args.Get(0); a != nil {
		res = a.(*wire.GetDataResponse)
	}
	return res, args.Error(1)
}

type mockDataResponseHandler struct {
	mock.Mock
}

func (m *mockDataResponseHandler) HandleGetDataResponse(
	ctx context.Context, sender string, res wire.GetDataResponse,
) error {
	args := m.Called(ctx, sender, res)
	return args.Error(0)
}

type mockTradeMessageHandler struct {
	mock.Mock
}

func (m *mockTradeMessageHandler) HandleTradeMessage(
	ctx context.Context, sender string, msg wire.TradeMessage,
) error {
	args := m.Called(ctx, sender, msg)
	return args.Error(0)
}
