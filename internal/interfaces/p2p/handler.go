package p2pinterface

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/internal/core/application/datasync"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

// DataRequestHandler builds the responses to the data requests of peers.
type DataRequestHandler interface {
	HandleGetDataRequest(
		ctx context.Context, req wire.GetDataRequest,
	) (*wire.GetDataResponse, error)
}

// DataResponseHandler merges the responses to the data requests of this
// node.
type DataResponseHandler interface {
	HandleGetDataResponse(
		ctx context.Context, sender string, res wire.GetDataResponse,
	) error
}

// TradeMessageHandler routes the messages of trading peers.
type TradeMessageHandler interface {
	HandleTradeMessage(ctx context.Context, sender string, msg wire.TradeMessage) error
}

// Handler decodes the envelopes received from peers and dispatches their
// payload to the right application service.
type Handler struct {
	messenger ports.Messenger
	requests  DataRequestHandler
	responses DataResponseHandler
	trades    TradeMessageHandler
}

func NewHandler(
	messenger ports.Messenger, requests DataRequestHandler,
	responses DataResponseHandler, trades TradeMessageHandler,
) (*Handler, error) {
	if messenger == nil {
		return nil, fmt.Errorf("missing messenger")
	}
	if requests == nil {
		return nil, fmt.Errorf("missing data request handler")
	}
	if responses == nil {
		return nil, fmt.Errorf("missing data response handler")
	}
	if trades == nil {
		return nil, fmt.Errorf("missing trade message handler")
	}
	return &Handler{messenger, requests, responses, trades}, nil
}

// NewHandlerFromServices is a shortcut for NewHandler with the data-sync
// service serving both requests and responses.
func NewHandlerFromServices(
	messenger ports.Messenger, dataSvc *datasync.Service,
	trades TradeMessageHandler,
) (*Handler, error) {
	if dataSvc == nil {
		return nil, fmt.Errorf("missing data sync service")
	}
	return NewHandler(messenger, dataSvc.Handler(), dataSvc.Manager(), trades)
}

// HandleEnvelope never fails, errors are logged along with the sender.
func (h *Handler) HandleEnvelope(ctx context.Context, env wire.Envelope) {
	logger := log.WithFields(log.Fields{
		"peer": env.Sender,
		"kind": env.Kind.String(),
	})
	if err := h.handle(ctx, env); err != nil {
		logger.WithError(err).Warn("failed to handle peer message")
		return
	}
	logger.Debug("handled peer message")
}

func (h *Handler) handle(ctx context.Context, env wire.Envelope) error {
	if env.Sender == "" {
		return fmt.Errorf("%w: sender", wire.ErrMissingField)
	}

	switch env.Kind {
	case wire.KindPreliminaryGetDataRequest, wire.KindGetUpdatedDataRequest:
		req, err := wire.DecodeGetDataRequest(env.Payload)
		if err != nil {
			return err
		}
		if req.Kind() != env.Kind {
			return fmt.Errorf(
				"%w: request kind %s in %s envelope",
				wire.ErrMalformedMessage, req.Kind(), env.Kind,
			)
		}
		return h.onGetDataRequest(ctx, env.Sender, *req)
	case wire.KindGetDataResponse:
		res, err := wire.DecodeGetDataResponse(env.Payload)
		if err != nil {
			return err
		}
		return h.responses.HandleGetDataResponse(ctx, env.Sender, *res)
	case wire.KindTradeMessage:
		msg, err := wire.DecodeTradeMessage(env.Payload)
		if err != nil {
			return err
		}
		return h.trades.HandleTradeMessage(ctx, env.Sender, *msg)
	default:
		return fmt.Errorf("%w: %s", wire.ErrUnknownKind, env.Kind)
	}
}

func (h *Handler) onGetDataRequest(
	ctx context.Context, sender string, req wire.GetDataRequest,
) error {
	res, err := h.requests.HandleGetDataRequest(ctx, req)
	if err != nil {
		return err
	}
	payload, err := wire.EncodeGetDataResponse(*res)
	if err != nil {
		return err
	}
	env := wire.NewEnvelope(wire.KindGetDataResponse, h.messenger.Address(), payload)
	return h.messenger.Send(ctx, sender, env)
}
