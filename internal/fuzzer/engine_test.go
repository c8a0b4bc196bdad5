package fuzzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/internal/metrics"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

func testConfig() types.Config {
	cfg := *types.DefaultConfig()
	cfg.Scan.RateLimit = 0
	cfg.Scan.Concurrency = 4
	return cfg
}

// laxShop reads the first id of a query and coerces string quantities to
// numbers, which is the behavior the scan is meant to surface
func laxShop() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/item", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		if _, err := strconv.Atoi(id); err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, strings.Repeat("x", 100))
	})
	mux.HandleFunc("/cart", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		var qty float64
		switch v := body["qty"].(type) {
		case float64:
			qty = v
		case string:
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				http.Error(w, "bad qty", http.StatusBadRequest)
				return
			}
			qty = n
		default:
			http.Error(w, "missing qty", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, "qty=%v", qty)
	})
	return mux
}

func TestEngineScan_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(laxShop())
	defer srv.Close()

	item, err := httpmsg.NewRequest("GET", srv.URL+"/item?id=5", nil, "")
	require.NoError(t, err)
	cart, err := httpmsg.NewRequest("POST", srv.URL+"/cart", map[string]string{"Content-Type": "application/json"}, `{"qty":3}`)
	require.NoError(t, err)

	cfg := testConfig()
	rec := metrics.New()
	sender, err := NewHTTPSender(cfg, nil, nil, rec)
	require.NoError(t, err)

	engine := NewEngine(cfg, sender, nil, rec)
	result, err := engine.Scan(context.Background(), []httpmsg.RequestResponse{{Request: item}, {Request: cart}})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Targets)
	assert.Equal(t, 2, result.Probes)
	assert.Equal(t, 10, result.Requests, "two baselines, five query probes, three JSON probes")
	assert.Equal(t, 10, sender.Sent())
	assert.Empty(t, result.Errors)
	assert.Equal(t, srv.URL, result.Target)

	require.Len(t, result.Findings, 2)
	byTitle := map[string]types.Finding{}
	for _, f := range result.Findings {
		byTitle[f.Title] = f
	}

	dup := byTitle[TitleQueryArray]
	assert.Equal(t, "id=5&id=51", dup.Payload)
	assert.Equal(t, srv.URL+"/item?id=5", dup.URL)

	typ := byTitle[TitleJSONType]
	assert.Equal(t, "qty", typ.Parameter)
	assert.Equal(t, "3", typ.Payload)
	assert.Equal(t, 200, typ.Evidence.Response.StatusCode)

	assert.Equal(t, 2, result.Summary.TotalFindings)
	assert.Equal(t, 1, result.Summary.ByParameter["qty"])
	assert.False(t, result.EndTime.Before(result.StartTime))
}

func TestEngineScan_ConsolidatesRepeatedFindings(t *testing.T) {
	req := parseRequest(t, itemRequest)
	sender := &fakeSender{respond: queryResponder}
	engine := NewEngine(testConfig(), sender, nil, nil)

	base := httpmsg.RequestResponse{Request: req, Response: respond(200, 1000)}
	result, err := engine.Scan(context.Background(), []httpmsg.RequestResponse{base, base})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Probes)
	assert.Equal(t, 10, result.Requests)
	assert.Len(t, result.Findings, 3, "the second target repeats the first one's descriptions")
}

func TestEngineScan_BaselineFailureSkipsTarget(t *testing.T) {
	req := parseRequest(t, itemRequest)
	sender := &fakeSender{respond: func(*httpmsg.Request) (*httpmsg.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}
	engine := NewEngine(testConfig(), sender, nil, nil)

	result, err := engine.Scan(context.Background(), []httpmsg.RequestResponse{{Request: req}})
	require.NoError(t, err)

	assert.Empty(t, result.Findings)
	assert.Equal(t, 0, result.Probes)
	assert.Equal(t, 1, result.Requests)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "baseline")
	assert.Empty(t, result.Errors[0].Parameter)
}

func TestEngineScan_RecordsFailedProbes(t *testing.T) {
	req := parseRequest(t, itemRequest)
	sender := &fakeSender{respond: func(r *httpmsg.Request) (*httpmsg.Response, error) {
		if strings.Contains(r.Query(), "[") {
			return nil, errors.New("connection reset")
		}
		return queryResponder(r)
	}}
	engine := NewEngine(testConfig(), sender, nil, nil)

	base := httpmsg.RequestResponse{Request: req, Response: respond(200, 1000)}
	result, err := engine.Scan(context.Background(), []httpmsg.RequestResponse{base})
	require.NoError(t, err)

	assert.Empty(t, result.Findings)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "id", result.Errors[0].Parameter)
	assert.Equal(t, 4, result.Requests)
}

func TestEngineScan_Empty(t *testing.T) {
	engine := NewEngine(testConfig(), &fakeSender{}, nil, nil)

	result, err := engine.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
	assert.NotEmpty(t, result.ScanID)
	assert.Equal(t, 0, result.Summary.TotalFindings)
}
