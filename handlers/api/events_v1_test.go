package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/dora-eventcache/eventcache"
)

const testAddress = "0x00000000219ab540356cbb839cbe05303d7705fa"

type testEventsResponse struct {
	Status string `json:"status"`
	Data   struct {
		ChainID uint64 `json:"chain_id"`
		Event   string `json:"event"`
		Count   int    `json:"count"`
		Events  []struct {
			BlockNumber uint64 `json:"block_number"`
			LogIndex    uint   `json:"log_index"`
		} `json:"events"`
	} `json:"data"`
}

func newTestRouter(t *testing.T) (*mux.Router, *[]eventcache.Scope) {
	t.Helper()

	scopes := []eventcache.Scope{}
	source := eventcache.SourceFunc(func(ctx context.Context, scope eventcache.Scope, fromBlock uint64, toBlock uint64) ([]*eventcache.EventRecord, error) {
		scopes = append(scopes, scope)
		if scope.EventName == "Broken" {
			return nil, fmt.Errorf("node unavailable")
		}

		records := []*eventcache.EventRecord{}
		for block := fromBlock; block <= toBlock; block++ {
			if block%2 != 0 {
				continue
			}
			records = append(records, &eventcache.EventRecord{
				ChainID:     scope.ChainID,
				BlockNumber: block,
				Address:     scope.Address,
				EventName:   scope.EventName,
			})
		}
		return records, nil
	})

	logger, _ := test.NewNullLogger()
	client, err := eventcache.NewClient(eventcache.Config{}, source, nil, logger)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	router := mux.NewRouter()
	NewApiHandler(logger, client, 1).RegisterRoutes(router)

	return router, &scopes
}

func TestApiEventsV1(t *testing.T) {
	router, scopes := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?address="+testAddress+"&event=Deposit&from=10&to=0x14", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	response := &testEventsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), response))
	assert.Equal(t, "OK", response.Status)
	assert.Equal(t, uint64(1), response.Data.ChainID)
	assert.Equal(t, "Deposit", response.Data.Event)
	assert.Equal(t, 6, response.Data.Count)
	require.Len(t, response.Data.Events, 6)
	assert.Equal(t, uint64(10), response.Data.Events[0].BlockNumber)
	assert.Equal(t, uint64(20), response.Data.Events[5].BlockNumber)

	require.Len(t, *scopes, 1)
	assert.Equal(t, common.HexToAddress(testAddress), (*scopes)[0].Address)
}

func TestApiEventsV1Topics(t *testing.T) {
	router, scopes := newTestRouter(t)

	topic := "0x000000000000000000000000000000000000000000000000000000000000beef"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?chain_id=5&address="+testAddress+"&event=Deposit&from=0&to=1&topic2="+topic, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, *scopes, 1)
	assert.Equal(t, uint64(5), (*scopes)[0].ChainID)
	assert.Equal(t, [][]common.Hash{nil, {common.HexToHash(topic)}}, (*scopes)[0].Topics)
}

func TestApiEventsV1Errors(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name         string
		query        string
		expectedCode int
	}{
		{name: "missing address", query: "event=Deposit&from=1&to=2", expectedCode: http.StatusBadRequest},
		{name: "missing event", query: "address=" + testAddress + "&from=1&to=2", expectedCode: http.StatusBadRequest},
		{name: "invalid chain id", query: "chain_id=x&address=" + testAddress + "&event=Deposit&from=1&to=2", expectedCode: http.StatusBadRequest},
		{name: "invalid block", query: "address=" + testAddress + "&event=Deposit&from=abc&to=2", expectedCode: http.StatusBadRequest},
		{name: "invalid topic", query: "address=" + testAddress + "&event=Deposit&from=1&to=2&topic1=0x12", expectedCode: http.StatusBadRequest},
		{name: "inverted range", query: "address=" + testAddress + "&event=Deposit&from=5&to=2", expectedCode: http.StatusBadRequest},
		{name: "unresolvable tag", query: "address=" + testAddress + "&event=Deposit&from=1&to=latest", expectedCode: http.StatusBadRequest},
		{name: "source failure", query: "address=" + testAddress + "&event=Broken&from=1&to=2", expectedCode: http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events?"+test.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, test.expectedCode, rec.Code)

			response := &ApiResponse{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), response))
			assert.Contains(t, response.Status, "ERROR: ")
		})
	}
}

func TestApiCacheStatsV1(t *testing.T) {
	router, _ := newTestRouter(t)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events?address="+testAddress+"&event=Deposit&from=0&to=9", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	response := &struct {
		Status string           `json:"status"`
		Data   eventcache.Stats `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), response))
	assert.Equal(t, "OK", response.Status)
	assert.Equal(t, 5, response.Data.EventStoreSize)
	assert.Equal(t, 1, response.Data.QueryCacheSize)
	assert.Equal(t, uint64(1), response.Data.QueryCacheHits)
	assert.Equal(t, uint64(1), response.Data.QueryCacheMisses)
	assert.Equal(t, uint64(1), response.Data.SourceFetches)
}
