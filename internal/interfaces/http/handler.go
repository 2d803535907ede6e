package httpinterface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/internal/core/application/offer"
	"github.com/tdex-network/tdex-p2p/internal/core/application/trade"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

const maxBodySize = 1 << 20

// TradeService is the part of the trade registry exposed to the operator.
type TradeService interface {
	TakeOffer(
		ctx context.Context, offer domain.Offer, amount decimal.Decimal,
	) (*domain.Trade, error)
	GetTrade(ctx context.Context, tradeID string) (*domain.Trade, error)
	ListTrades(ctx context.Context) ([]domain.Trade, error)
	NumOfActiveTrades() int
	OnDepositPublished(ctx context.Context, tradeID, txid string) error
	OnPayoutPublished(ctx context.Context, tradeID, txid string) error
	FiatPaymentStarted(ctx context.Context, tradeID string) error
	FiatPaymentReceived(ctx context.Context, tradeID string) error
}

// OfferService is the part of the offer registry exposed to the operator.
type OfferService interface {
	PlaceOffer(
		ctx context.Context, args offer.PlaceOfferArgs,
	) (*domain.OpenOffer, error)
	ListOpenOffers(ctx context.Context) ([]domain.OpenOffer, error)
	CancelOffer(ctx context.Context, offerID string) error
	GetOfferBook(ctx context.Context) ([]domain.Offer, error)
	GetOfferFromBook(ctx context.Context, offerID string) (*domain.Offer, error)
}

// SyncStatus reports the state of the data synchronization.
type SyncStatus interface {
	NumOfPendingRequests() int
}

type handler struct {
	address  string
	tradeSvc TradeService
	offerSvc OfferService
	syncSvc  SyncStatus
	store    domain.PayloadStore
}

// NewHandler returns the router of the operator API.
func NewHandler(
	address string, tradeSvc TradeService, offerSvc OfferService,
	syncSvc SyncStatus, store domain.PayloadStore,
) http.Handler {
	h := &handler{address, tradeSvc, offerSvc, syncSvc, store}

	router := httprouter.New()
	router.GET("/v1/info", h.getInfo)
	router.GET("/v1/book", h.getOfferBook)
	router.GET("/v1/offers", h.listOpenOffers)
	router.POST("/v1/offers", h.placeOffer)
	router.DELETE("/v1/offers/:id", h.cancelOffer)
	router.GET("/v1/trades", h.listTrades)
	router.POST("/v1/trades", h.takeOffer)
	router.GET("/v1/trades/:id", h.getTrade)
	router.POST("/v1/trades/:id/deposit", h.depositPublished)
	router.POST("/v1/trades/:id/payout", h.payoutPublished)
	router.POST("/v1/trades/:id/fiat/started", h.fiatPaymentStarted)
	router.POST("/v1/trades/:id/fiat/received", h.fiatPaymentReceived)
	return router
}

func (h *handler) getInfo(
	w http.ResponseWriter, r *http.Request, _ httprouter.Params,
) {
	entries, err := h.store.GetProtectedEntries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	payloads, err := h.store.GetPersistablePayloads(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	caps := make([]string, 0, domain.NodeCapabilities.Len())
	for _, c := range domain.NodeCapabilities.ToIntList() {
		caps = append(caps, domain.Capability(c).String())
	}
	writeJSON(w, http.StatusOK, infoResponse{
		Address:             h.address,
		Capabilities:        caps,
		ActiveTrades:        h.tradeSvc.NumOfActiveTrades(),
		PendingDataRequests: h.syncSvc.NumOfPendingRequests(),
		StoredEntries:       len(entries),
		StoredPayloads:      len(payloads),
	})
}

func (h *handler) getOfferBook(
	w http.ResponseWriter, r *http.Request, _ httprouter.Params,
) {
	offers, err := h.offerSvc.GetOfferBook(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	res := make([]offerInfo, 0, len(offers))
	for _, o := range offers {
		res = append(res, newOfferInfo(o))
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) listOpenOffers(
	w http.ResponseWriter, r *http.Request, _ httprouter.Params,
) {
	openOffers, err := h.offerSvc.ListOpenOffers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	res := make([]openOfferInfo, 0, len(openOffers))
	for _, o := range openOffers {
		res = append(res, newOpenOfferInfo(o))
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) placeOffer(
	w http.ResponseWriter, r *http.Request, _ httprouter.Params,
) {
	var req placeOfferRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	}
	args, err := req.toArgs()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	}

	openOffer, err := h.offerSvc.PlaceOffer(r.Context(), args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOpenOfferInfo(*openOffer))
}

func (h *handler) cancelOffer(
	w http.ResponseWriter, r *http.Request, ps httprouter.Params,
) {
	if err := h.offerSvc.CancelOffer(r.Context(), ps.ByName("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listTrades(
	w http.ResponseWriter, r *http.Request, _ httprouter.Params,
) {
	trades, err := h.tradeSvc.ListTrades(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	res := make([]tradeInfo, 0, len(trades))
	for _, t := range trades {
		res = append(res, newTradeInfo(t))
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) takeOffer(
	w http.ResponseWriter, r *http.Request, _ httprouter.Params,
) {
	var req takeOfferRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	}

	o, err := h.offerSvc.GetOfferFromBook(r.Context(), req.OfferID)
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.tradeSvc.TakeOffer(r.Context(), *o, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTradeInfo(t.Snapshot()))
}

func (h *handler) getTrade(
	w http.ResponseWriter, r *http.Request, ps httprouter.Params,
) {
	t, err := h.tradeSvc.GetTrade(r.Context(), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTradeInfo(t.Snapshot()))
}

func (h *handler) depositPublished(
	w http.ResponseWriter, r *http.Request, ps httprouter.Params,
) {
	h.withTxID(w, r, ps, h.tradeSvc.OnDepositPublished)
}

func (h *handler) payoutPublished(
	w http.ResponseWriter, r *http.Request, ps httprouter.Params,
) {
	h.withTxID(w, r, ps, h.tradeSvc.OnPayoutPublished)
}

func (h *handler) fiatPaymentStarted(
	w http.ResponseWriter, r *http.Request, ps httprouter.Params,
) {
	h.tradeAction(w, r, ps.ByName("id"), h.tradeSvc.FiatPaymentStarted)
}

func (h *handler) fiatPaymentReceived(
	w http.ResponseWriter, r *http.Request, ps httprouter.Params,
) {
	h.tradeAction(w, r, ps.ByName("id"), h.tradeSvc.FiatPaymentReceived)
}

func (h *handler) withTxID(
	w http.ResponseWriter, r *http.Request, ps httprouter.Params,
	action func(ctx context.Context, tradeID, txid string) error,
) {
	var req txRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	}
	h.tradeAction(w, r, ps.ByName("id"), func(ctx context.Context, id string) error {
		return action(ctx, id, req.TxID)
	})
}

// tradeAction runs the action and replies with the resulting trade.
func (h *handler) tradeAction(
	w http.ResponseWriter, r *http.Request, tradeID string,
	action func(ctx context.Context, tradeID string) error,
) {
	if err := action(r.Context(), tradeID); err != nil {
		writeError(w, err)
		return
	}
	t, err := h.tradeSvc.GetTrade(r.Context(), tradeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTradeInfo(t.Snapshot()))
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorResponse{err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrTradeNotFound),
		errors.Is(err, domain.ErrOpenOfferNotFound),
		errors.Is(err, offer.ErrOfferNotInBook):
		return http.StatusNotFound
	case errors.Is(err, trade.ErrActionNotAllowedForRole),
		errors.Is(err, trade.ErrDepositNotConfirmed),
		errors.Is(err, trade.ErrFiatPaymentNotReceived),
		errors.Is(err, domain.ErrTradeTerminated),
		errors.Is(err, domain.ErrOpenOfferNotAvailable),
		errors.Is(err, domain.ErrOpenOfferClosed):
		return http.StatusConflict
	case errors.Is(err, trade.ErrCannotTakeOwnOffer),
		errors.Is(err, trade.ErrMissingTxID),
		errors.Is(err, domain.ErrTradeAmountOutOfRange),
		errors.Is(err, domain.ErrOfferInvalidAssetPair),
		errors.Is(err, domain.ErrOfferInvalidAmount),
		errors.Is(err, domain.ErrOfferInvalidPrice),
		errors.Is(err, wire.ErrMissingField):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
