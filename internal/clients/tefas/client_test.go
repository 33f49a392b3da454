package tefas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_ReturnsNewestRow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/DB/BindHistoryInfo", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "YAT", r.Form.Get("fontip"))
		assert.Equal(t, "TTE", r.Form.Get("fonkod"))
		assert.NotEmpty(t, r.Form.Get("bastarih"))
		assert.NotEmpty(t, r.Form.Get("bittarih"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"TARIH":"1719446400000","FONKODU":"TTE","FONUNVAN":"Is Portfoy Teknoloji Fonu","FIYAT":0.184401},
			{"TARIH":"1719532800000","FONKODU":"TTE","FONUNVAN":"Is Portfoy Teknoloji Fonu","FIYAT":0.186912}
		]}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	quote, err := client.Fetch(context.Background(), "TTE")
	require.NoError(t, err)

	assert.Equal(t, "TTE", quote.Symbol)
	assert.Equal(t, "Is Portfoy Teknoloji Fonu", quote.Name)
	assert.True(t, quote.Price.Equal(decimal.NewFromFloat(0.186912)), "got %s", quote.Price)
	assert.Equal(t, "TRY", quote.Currency)
	assert.Equal(t, "TEFAS", quote.Source)
}

func TestFetch_EmptyDataIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	_, err := client.Fetch(context.Background(), "XXX")
	assert.Error(t, err)
}

func TestFetch_ZeroPricedRowsAreSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"TARIH":"1719532800000","FONKODU":"YAS","FONUNVAN":"Fon","FIYAT":0},
			{"TARIH":"1719446400000","FONKODU":"YAS","FONUNVAN":"Fon","FIYAT":1.0171}
		]}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	quote, err := client.Fetch(context.Background(), "YAS")
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.NewFromFloat(1.0171)))
}

func TestFetch_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	_, err := client.Fetch(context.Background(), "TTE")
	assert.Error(t, err)
}
