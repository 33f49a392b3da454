package tefasweb

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

const fundPage = `<html><body>
<span id="MainContent_PanelInfo_lblFundTitle">İş Portföy BIST Teknoloji Ağırlık Sınırlamalı Endeksi Hisse Senedi Fonu</span>
<ul class="top-list">
  <li><span>Fiyat (TL)</span><span>0,186912</span></li>
  <li><span>Günlük Getiri (%)</span><span>1,36</span></li>
</ul>
</body></html>`

func TestFetch_ScrapesTitleAndPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/FonAnaliz.aspx", r.URL.Path)
		assert.Equal(t, "TTE", r.URL.Query().Get("FonKod"))
		w.Write([]byte(fundPage))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	quote, err := client.Fetch(context.Background(), "TTE")
	require.NoError(t, err)

	assert.Equal(t, "TTE", quote.Symbol)
	assert.Contains(t, quote.Name, "İş Portföy")
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("0.186912")), "got %s", quote.Price)
	assert.Equal(t, "TEFAS (web)", quote.Source)
}

func TestFetch_MissingTitleMeansUnknownFund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Fon bulunamadı</p></body></html>`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	_, err := client.Fetch(context.Background(), "XXX")
	assert.Error(t, err)
}

func TestParseTurkishDecimal(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0,186912", "0.186912", false},
		{"1.234,56", "1234.56", false},
		{"4.123,45 TL", "4123.45", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		got, err := parseTurkishDecimal(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "input %q got %s", tt.in, got)
	}
}
