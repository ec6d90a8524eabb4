package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/token"
)

// rpcServer answers every request with the result returned by handle.
func rpcServer(t *testing.T, handle func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handle(req),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func accountValueJSON(owner domain.Pubkey, data []byte) map[string]interface{} {
	return map[string]interface{}{
		"lamports":   uint64(1461600),
		"owner":      owner.String(),
		"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
		"executable": false,
		"rentEpoch":  uint64(361),
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	address := domain.NewRandomPubkey()
	owner := domain.NewRandomPubkey()

	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getAccountInfo" {
			t.Errorf("expected method getAccountInfo, got %s", req.Method)
		}
		if len(req.Params) != 2 || req.Params[0] != address.String() {
			t.Errorf("unexpected params: %v", req.Params)
		}
		cfg, _ := req.Params[1].(map[string]interface{})
		if cfg["encoding"] != "base64" || cfg["commitment"] != "confirmed" {
			t.Errorf("unexpected config: %v", cfg)
		}
		return map[string]interface{}{"value": accountValueJSON(owner, []byte("Hello World"))}
	})

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), address)
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info.Address != address {
		t.Errorf("unexpected address: %s", info.Address)
	}
	if info.Lamports != 1461600 {
		t.Errorf("expected lamports 1461600, got %d", info.Lamports)
	}
	if info.Owner != owner {
		t.Errorf("unexpected owner: %s", info.Owner)
	}
	if string(info.Data) != "Hello World" {
		t.Errorf("unexpected data: %q", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := rpcServer(t, func(rpcRequest) interface{} {
		return map[string]interface{}{"value": nil}
	})

	client := NewHTTPClient(server.URL)
	_, err := client.GetAccountInfo(context.Background(), domain.NewRandomPubkey())
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestHTTPClient_GetMultipleAccounts(t *testing.T) {
	a, b := domain.NewRandomPubkey(), domain.NewRandomPubkey()
	owner := domain.NewRandomPubkey()

	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getMultipleAccounts" {
			t.Errorf("expected method getMultipleAccounts, got %s", req.Method)
		}
		return map[string]interface{}{
			"value": []interface{}{accountValueJSON(owner, []byte{1, 2, 3}), nil},
		}
	})

	client := NewHTTPClient(server.URL)
	infos, err := client.GetMultipleAccounts(context.Background(), []domain.Pubkey{a, b})
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 results, got %d", len(infos))
	}
	if infos[0] == nil || infos[0].Address != a || len(infos[0].Data) != 3 {
		t.Errorf("unexpected first account: %+v", infos[0])
	}
	if infos[1] != nil {
		t.Errorf("expected nil for missing account, got %+v", infos[1])
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  uint64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}

	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32600,
				"message": "Invalid Request",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	_, err := client.GetSlot(context.Background())
	var rpcErr *rpcError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected rpcError, got %T", err)
	}
	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
	if attempts.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRPCMintReader(t *testing.T) {
	authority := domain.NewRandomPubkey()
	mintAddr := domain.NewRandomPubkey()
	foreign := domain.NewRandomPubkey()
	mint := token.EncodeMint(&domain.Mint{
		MintAuthority: &authority,
		Supply:        42,
		Decimals:      6,
		IsInitialized: true,
	})

	server := rpcServer(t, func(req rpcRequest) interface{} {
		switch req.Params[0] {
		case mintAddr.String():
			return map[string]interface{}{"value": accountValueJSON(token.ProgramID, mint)}
		case foreign.String():
			return map[string]interface{}{"value": accountValueJSON(domain.NewRandomPubkey(), mint)}
		}
		return map[string]interface{}{"value": nil}
	})
	reader := NewRPCMintReader(NewHTTPClient(server.URL))
	ctx := context.Background()

	got, err := reader.GetMint(ctx, mintAddr)
	if err != nil {
		t.Fatalf("GetMint: %v", err)
	}
	if got.Address != mintAddr || got.Supply != 42 || got.Decimals != 6 {
		t.Errorf("unexpected mint: %+v", got)
	}
	if got.MintAuthority == nil || *got.MintAuthority != authority {
		t.Errorf("unexpected mint authority: %v", got.MintAuthority)
	}
	if got.FreezeAuthority != nil {
		t.Errorf("expected no freeze authority, got %s", got.FreezeAuthority)
	}

	if _, err := reader.GetMint(ctx, foreign); !errors.Is(err, token.ErrInvalidMint) {
		t.Errorf("expected ErrInvalidMint for foreign owner, got %v", err)
	}
	if _, err := reader.GetMint(ctx, domain.NewRandomPubkey()); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}
