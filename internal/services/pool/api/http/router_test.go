package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	poolhttp "github.com/louisbranch/cellarpool/internal/services/pool/api/http"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/engine"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/memory"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng, err := engine.New(engine.Config{Ledger: memory.New(), Now: func() time.Time { return start }})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	server := httptest.NewServer(poolhttp.NewRouter(poolhttp.NewHandler(eng, nil)))
	t.Cleanup(server.Close)
	return server, eng
}

func seedPool(t *testing.T, eng *engine.Engine) ledger.PoolID {
	t.Helper()
	ctx := context.Background()
	p, err := eng.CreatePool(ctx, pool.Params{
		Issuer:          "issuer",
		Target:          500,
		MinContribution: 10,
		MaxContribution: 400,
		Deadline:        start.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, c := range []struct {
		who    ledger.Address
		amount uint64
	}{{"alice", 300}, {"bob", 250}} {
		if _, err := eng.Contribute(ctx, p.ID, c.who, c.amount); err != nil {
			t.Fatalf("contribute: %v", err)
		}
	}
	return p.ID
}

func getJSON(t *testing.T, url string, wantStatus int, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("expected status %d for %s, got %d", wantStatus, url, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestReadRoutes(t *testing.T) {
	server, eng := newServer(t)
	id := seedPool(t, eng)

	var p poolgrpc.Pool
	getJSON(t, server.URL+"/v1/pools/1", http.StatusOK, &p)
	if p.ID != uint64(id) || p.Status != "FUNDING" || p.ActiveRaised != 550 {
		t.Fatalf("unexpected pool %+v", p)
	}

	var balance poolgrpc.BalanceResponse
	getJSON(t, server.URL+"/v1/pools/1/balance", http.StatusOK, &balance)
	if balance.Balance != 550 {
		t.Fatalf("expected balance 550, got %d", balance.Balance)
	}

	var holders poolgrpc.ListHoldersResponse
	getJSON(t, server.URL+"/v1/pools/1/shares", http.StatusOK, &holders)
	if len(holders.Holders) != 2 || holders.Holders[0].Holder != "alice" || holders.Holders[0].Shares != 300 {
		t.Fatalf("unexpected holders %+v", holders)
	}

	var shares poolgrpc.SharesOfResponse
	getJSON(t, server.URL+"/v1/pools/1/shares/carol", http.StatusOK, &shares)
	if shares.Shares != 0 {
		t.Fatalf("expected carol to hold nothing, got %d", shares.Shares)
	}

	var events poolgrpc.ListEventsResponse
	getJSON(t, server.URL+"/v1/pools/1/events?limit=2", http.StatusOK, &events)
	if len(events.Events) != 2 || events.NextPageToken != 2 {
		t.Fatalf("expected first page of two events, got %d with token %d", len(events.Events), events.NextPageToken)
	}
	getJSON(t, server.URL+"/v1/pools/1/events?after_seq=2", http.StatusOK, &events)
	if len(events.Events) != 2 || events.Events[0].Type != "pool.contribution_received" {
		t.Fatalf("expected contribution and funded events, got %+v", events.Events)
	}

	var list poolgrpc.ListPoolsResponse
	getJSON(t, server.URL+"/v1/pools?status=funding", http.StatusOK, &list)
	if len(list.Pools) != 1 {
		t.Fatalf("expected one funding pool, got %d", len(list.Pools))
	}

	var stats poolgrpc.StatsResponse
	getJSON(t, server.URL+"/v1/stats", http.StatusOK, &stats)
	if stats.Pools != 1 || stats.ActiveRaised != 550 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	resp := getJSON(t, server.URL+"/healthz", http.StatusOK, nil)
	if resp.Header.Get(poolhttp.RequestIDHeader) == "" {
		t.Fatal("expected a generated request id header")
	}
}

func TestReadErrors(t *testing.T) {
	server, eng := newServer(t)
	seedPool(t, eng)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{name: "unknown pool", path: "/v1/pools/9", status: http.StatusNotFound, code: "POOL_NOT_FOUND"},
		{name: "bad pool id", path: "/v1/pools/abc", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "zero pool id", path: "/v1/pools/0/balance", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "not distributed", path: "/v1/pools/1/distribution", status: http.StatusConflict, code: "POOL_INVALID_STATE"},
		{name: "bad status", path: "/v1/pools?status=paused", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "bad cursor", path: "/v1/pools/1/events?after_seq=-1", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "page size beyond int32", path: "/v1/pools?page_size=4294967297", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "limit beyond int32", path: "/v1/pools/1/events?limit=4294967297", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "unknown filter field", path: "/v1/pools?filter=" + url.QueryEscape(`owner = "x"`), status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "malformed event filter", path: "/v1/pools/1/events?filter=" + url.QueryEscape(`seq >`), status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body struct {
				Code string `json:"code"`
			}
			getJSON(t, server.URL+tc.path, tc.status, &body)
			if body.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, body.Code)
			}
		})
	}
}

func TestRequestIDHeader(t *testing.T) {
	server, _ := newServer(t)
	tests := []struct {
		name   string
		sent   string
		echoed bool
	}{
		{name: "valid id echoed", sent: "dash-7", echoed: true},
		{name: "malformed id replaced", sent: "not valid!"},
		{name: "missing id generated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, server.URL+"/healthz", nil)
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			if tt.sent != "" {
				req.Header.Set(poolhttp.RequestIDHeader, tt.sent)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("do: %v", err)
			}
			resp.Body.Close()
			got := resp.Header.Get(poolhttp.RequestIDHeader)
			if tt.echoed && got != tt.sent {
				t.Fatalf("expected %q echoed, got %q", tt.sent, got)
			}
			if !tt.echoed && (got == "" || got == tt.sent) {
				t.Fatalf("expected a generated id, got %q", got)
			}
		})
	}
}

func TestFilterQueries(t *testing.T) {
	server, eng := newServer(t)
	seedPool(t, eng)
	if _, err := eng.CreatePool(context.Background(), pool.Params{
		Issuer:          "other",
		Target:          900,
		MinContribution: 10,
		MaxContribution: 400,
		Deadline:        start.Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	poolTests := []struct {
		filter string
		want   []uint64
	}{
		{filter: `issuer = "Issuer"`, want: []uint64{1}},
		{filter: `status = "open"`, want: []uint64{2}},
		{filter: `target > 500 OR status = "funding"`, want: []uint64{1, 2}},
	}
	for _, tc := range poolTests {
		t.Run(tc.filter, func(t *testing.T) {
			var list poolgrpc.ListPoolsResponse
			getJSON(t, server.URL+"/v1/pools?filter="+url.QueryEscape(tc.filter), http.StatusOK, &list)
			if len(list.Pools) != len(tc.want) {
				t.Fatalf("expected pools %v, got %+v", tc.want, list.Pools)
			}
			for i, id := range tc.want {
				if list.Pools[i].ID != id {
					t.Fatalf("expected pools %v, got %+v", tc.want, list.Pools)
				}
			}
		})
	}

	var events poolgrpc.ListEventsResponse
	getJSON(t, server.URL+"/v1/pools/1/events?filter="+url.QueryEscape(`actor = "bob" AND type = "pool.contribution_received"`), http.StatusOK, &events)
	if len(events.Events) != 1 || events.Events[0].ActorID != "bob" {
		t.Fatalf("expected bob's contribution only, got %+v", events.Events)
	}
	getJSON(t, server.URL+"/v1/pools/1/events?filter="+url.QueryEscape(`ts > timestamp("2026-03-01T12:00:00Z")`), http.StatusOK, &events)
	if len(events.Events) != 0 {
		t.Fatalf("expected no events after the fixed clock, got %d", len(events.Events))
	}
}
