package goldweb

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

func TestFetch_ScrapesGramGoldPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/altin/gram-altin", r.URL.Path)
		w.Write([]byte(`<html><body>
			<div class="security-gram-altin">
				<span class="lastPrice">4.123,45</span>
			</div>
		</body></html>`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	quote, err := client.Fetch(context.Background(), "ALTIN")
	require.NoError(t, err)

	assert.Equal(t, "ALTIN", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("4123.45")), "got %s", quote.Price)
	assert.Equal(t, "TRY", quote.Currency)
	assert.Equal(t, "Bloomberg HT", quote.Source)
}

func TestFetch_MissingElementIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>layout changed</p></body></html>`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	_, err := client.Fetch(context.Background(), "ALTIN")
	assert.Error(t, err)
}
