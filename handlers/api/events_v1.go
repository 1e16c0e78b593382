package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/dora-eventcache/eventcache"
	"github.com/ethpandaops/dora-eventcache/utils"
)

// EventsProvider answers event queries, usually an *eventcache.Client.
type EventsProvider interface {
	GetEvents(ctx context.Context, query *eventcache.Query) ([]*eventcache.EventRecord, error)
	Stats() eventcache.Stats
}

type ApiHandler struct {
	logger   logrus.FieldLogger
	provider EventsProvider
	chainID  uint64
}

type APIEventsResponseV1 struct {
	ChainID uint64                    `json:"chain_id"`
	Address common.Address            `json:"address"`
	Event   string                    `json:"event"`
	Count   int                       `json:"count"`
	Events  []*eventcache.EventRecord `json:"events"`
}

// NewApiHandler creates the api handlers. chainID is used for queries without
// chain_id parameter.
func NewApiHandler(logger logrus.FieldLogger, provider EventsProvider, chainID uint64) *ApiHandler {
	return &ApiHandler{
		logger:   logger,
		provider: provider,
		chainID:  chainID,
	}
}

func (h *ApiHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/events", h.ApiEventsV1).Methods("GET")
	router.HandleFunc("/api/v1/cache/stats", h.ApiCacheStatsV1).Methods("GET")
}

// ApiEventsV1 returns all events of a contract event within a block range, ordered by
// block and log index. from and to accept block numbers or tags and default to latest.
func (h *ApiHandler) ApiEventsV1(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	q := r.URL.Query()
	query := &eventcache.Query{
		ChainID:   h.chainID,
		EventName: q.Get("event"),
	}

	if chainID := q.Get("chain_id"); chainID != "" {
		parsed, err := strconv.ParseUint(chainID, 10, 64)
		if err != nil {
			sendBadRequestResponse(w, r.URL.String(), "invalid chain_id provided")
			return
		}
		query.ChainID = parsed
	}

	address := q.Get("address")
	if !common.IsHexAddress(address) {
		sendBadRequestResponse(w, r.URL.String(), "invalid address provided")
		return
	}
	query.Address = common.HexToAddress(address)

	if query.EventName == "" {
		sendBadRequestResponse(w, r.URL.String(), "missing event")
		return
	}

	var err error
	query.FromBlock, err = utils.ParseBlockNumber(q.Get("from"))
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), fmt.Sprintf("invalid from: %v", err))
		return
	}
	query.ToBlock, err = utils.ParseBlockNumber(q.Get("to"))
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), fmt.Sprintf("invalid to: %v", err))
		return
	}

	for idx, name := range []string{"topic1", "topic2", "topic3"} {
		topics, err := utils.ParseTopics(q.Get(name))
		if err != nil {
			sendBadRequestResponse(w, r.URL.String(), fmt.Sprintf("invalid %v: %v", name, err))
			return
		}
		if topics == nil {
			continue
		}
		for len(query.Topics) < idx {
			query.Topics = append(query.Topics, nil)
		}
		query.Topics = append(query.Topics, topics)
	}

	records, err := h.provider.GetEvents(r.Context(), query)
	if err != nil {
		var resolutionErr *eventcache.BlockRangeResolutionError
		if errors.Is(err, eventcache.ErrInvalidRange) || errors.As(err, &resolutionErr) {
			sendBadRequestResponse(w, r.URL.String(), err.Error())
			return
		}

		h.logger.WithError(err).Warnf("failed loading events for %v", query.Scope().Key())
		sendServerErrorResponse(w, r.URL.String(), err.Error())
		return
	}

	sendOKResponse(w, r.URL.String(), &APIEventsResponseV1{
		ChainID: query.ChainID,
		Address: query.Address,
		Event:   query.EventName,
		Count:   len(records),
		Events:  records,
	})
}

// ApiCacheStatsV1 returns sizes and counters of the event cache.
func (h *ApiHandler) ApiCacheStatsV1(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	sendOKResponse(w, r.URL.String(), h.provider.Stats())
}
