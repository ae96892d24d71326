package vending

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/Veraticus/blue-coffee-vending/internal/config"
	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, mutate ...func(*config.BackendConfig)) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.DefaultBackendConfig()
	cfg.BaseURL = server.URL
	cfg.Timeout = 2 * time.Second
	for _, m := range mutate {
		m(&cfg)
	}

	client, err := NewClient(cfg, WithRetryOptions(service.RetryOptions{
		MaxAttempts:  cfg.CatalogRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}))
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write([]byte(body))
	assert.NoError(t, err)
}

func TestClient_ListProducts(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		paths = append(paths, r.URL.Path)
		writeJSON(t, w, http.StatusOK, `[
			{"id": 1, "slot_no": "A1", "name": "Lemon Tea", "price": 20, "stock": 5, "image_url": "/img/tea.png"},
			{"id": 2, "slot_no": "B1", "name": "Chips", "price": 15, "stock": 0, "image_url": null}
		]`)
	}))

	products, err := client.ListProducts(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, model.Product{ID: 1, SlotCode: "A1", Name: "Lemon Tea", Price: 20, Stock: 5, ImageRef: "/img/tea.png"}, products[0])
	assert.False(t, products[1].InStock())

	_, err = client.ListProducts(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/products", "/products/all"}, paths)
}

func TestClient_ListMoneyStock(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, `[
			{"denom": 10, "quantity": 40, "type": "coin"},
			{"denom": 100, "qty": 3},
			{"denom": 20, "quantity": 0, "type": "note"}
		]`)
	}))

	stock, err := client.ListMoneyStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.MoneyStock{
		{Denom: 10, Quantity: 40, Type: model.KindCoin},
		{Denom: 100, Quantity: 3, Type: model.KindNote},
		{Denom: 20, Quantity: 0, Type: model.KindNote},
	}, stock)
}

func TestClient_PurchaseFlow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /select-product", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 7, req["product_id"])
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		writeJSON(t, w, http.StatusOK, `{"session_id": "s-1", "product": {"id": 7}, "inserted_amount": 0}`)
	})
	mux.HandleFunc("POST /insert-money", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID string `json:"session_id"`
			Denom     int    `json:"denom"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "s-1", req.SessionID)
		assert.Equal(t, 20, req.Denom)
		writeJSON(t, w, http.StatusOK, `{"inserted_amount": 30, "price": 20, "status": "READY"}`)
	})
	mux.HandleFunc("POST /confirm", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, `{
			"status": "SUCCESS",
			"product": {"id": 7, "name": "Lemon Tea"},
			"paid": 30, "price": 20, "change": 10,
			"change_detail": [{"denom": 10, "qty": 1}],
			"remaining_stock": 4
		}`)
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	sessionID, err := client.SelectProduct(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "s-1", sessionID)

	inserted, err := client.InsertMoney(ctx, sessionID, 20)
	require.NoError(t, err)
	assert.Equal(t, 30, inserted)

	result, err := client.Confirm(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionResult{
		Status:         model.PurchaseStatusSuccess,
		Product:        model.ProductRef{ID: 7, Name: "Lemon Tea"},
		ChangeDetail:   []model.ChangeItem{{Denom: 10, Qty: 1}},
		Paid:           30,
		Price:          20,
		Change:         10,
		RemainingStock: 4,
	}, result)
}

func TestClient_APIErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantDetail string
		wantCode   string
		status     int
	}{
		{
			name:       "string detail",
			status:     http.StatusBadRequest,
			body:       `{"detail": "Product not available"}`,
			wantDetail: "Product not available",
		},
		{
			name:       "structured detail",
			status:     http.StatusBadRequest,
			body:       `{"detail": {"error": "NOT_ENOUGH_MONEY", "paid": 10, "price": 20}}`,
			wantDetail: CodeNotEnoughMoney,
			wantCode:   CodeNotEnoughMoney,
		},
		{
			name:       "validation list",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail": [{"msg": "field required"}, {"msg": "value is not a valid integer"}]}`,
			wantDetail: "field required; value is not a valid integer",
		},
		{
			name:       "plain text body",
			status:     http.StatusBadGateway,
			body:       `upstream down`,
			wantDetail: "upstream down",
		},
		{
			name:       "null detail",
			status:     http.StatusInternalServerError,
			body:       `{"detail": null}`,
			wantDetail: "Internal Server Error",
		},
		{
			name:       "empty body",
			status:     http.StatusNotFound,
			wantDetail: "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, tt.status, tt.body)
			}))

			_, err := client.Confirm(context.Background(), "s-1")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantDetail, apiErr.Detail())
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestClient_StructuredDetailKeepsFields(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, `{"detail": {"error": "NOT_ENOUGH_MONEY", "paid": 10, "price": 20}}`)
	}))

	_, err := client.Confirm(context.Background(), "s-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, map[string]any{"paid": float64(10), "price": float64(20)}, apiErr.Fields)
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	cfg := config.DefaultBackendConfig()
	cfg.BaseURL = url
	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = client.SelectProduct(context.Background(), 1)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "select product", transportErr.Op)
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)
	assert.Equal(t, transportErr.Err.Error(), err.Error())
}

func TestClient_UnexpectedResponses(t *testing.T) {
	tests := []struct {
		call func(*Client) error
		name string
		body string
	}{
		{
			name: "select without session id",
			body: `{"product": {"id": 1}}`,
			call: func(c *Client) error {
				_, err := c.SelectProduct(context.Background(), 1)
				return err
			},
		},
		{
			name: "insert without amount",
			body: `{"status": "READY"}`,
			call: func(c *Client) error {
				_, err := c.InsertMoney(context.Background(), "s-1", 10)
				return err
			},
		},
		{
			name: "confirm without success",
			body: `{"status": "PENDING"}`,
			call: func(c *Client) error {
				_, err := c.Confirm(context.Background(), "s-1")
				return err
			},
		},
		{
			name: "malformed json",
			body: `{"session_id":`,
			call: func(c *Client) error {
				_, err := c.SelectProduct(context.Background(), 1)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, http.StatusOK, tt.body)
			}))
			require.ErrorIs(t, tt.call(client), common.ErrUnexpectedResponse)
		})
	}
}

func TestClient_CatalogRetries(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				writeJSON(t, w, http.StatusServiceUnavailable, `{"detail": "warming up"}`)
				return
			}
			writeJSON(t, w, http.StatusOK, `[]`)
		}))

		products, err := client.ListProducts(context.Background(), false)
		require.NoError(t, err)
		assert.Empty(t, products)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			writeJSON(t, w, http.StatusNotFound, `{"detail": "Not Found"}`)
		}))

		_, err := client.ListMoneyStock(context.Background())
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("session operations are never retried", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			writeJSON(t, w, http.StatusInternalServerError, `{"detail": "boom"}`)
		}))

		_, err := client.InsertMoney(context.Background(), "s-1", 10)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestClient_AbortSession(t *testing.T) {
	t.Run("posts to the configured path", func(t *testing.T) {
		var got string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			got = r.URL.Path + " " + req["session_id"]
			w.WriteHeader(http.StatusNoContent)
		}), func(cfg *config.BackendConfig) {
			cfg.AbortPath = "/cancel-session"
		})

		require.NoError(t, client.AbortSession(context.Background(), "s-9"))
		assert.Equal(t, "/cancel-session s-9", got)
	})

	t.Run("unconfigured", func(t *testing.T) {
		client := newTestClient(t, http.NotFoundHandler())
		err := client.AbortSession(context.Background(), "s-9")
		require.ErrorIs(t, err, common.ErrMissingConfig)
	})
}

func TestClient_RequestIDs(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(RequestIDHeader))
		writeJSON(t, w, http.StatusOK, `[]`)
	}))
	t.Cleanup(server.Close)

	cfg := config.DefaultBackendConfig()
	cfg.BaseURL = server.URL
	n := 0
	client, err := NewClient(cfg, WithRequestIDs(func() string {
		n++
		return "req-" + string(rune('0'+n))
	}))
	require.NoError(t, err)

	_, err = client.ListProducts(context.Background(), false)
	require.NoError(t, err)
	_, err = client.ListMoneyStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1", "req-2"}, seen)
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := config.DefaultBackendConfig()
	cfg.BaseURL = "not a url"
	_, err := NewClient(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
}
