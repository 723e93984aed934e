package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounting struct {
	refreshes int32
	pushes    int32
	failDoc   string
}

func (f *fakeAccounting) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			assert.Equal(t, "auth-code", r.Form.Get("code"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"token_type":    "bearer",
				"expires_in":    3600,
			})
		case "refresh_token":
			atomic.AddInt32(&f.refreshes, 1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access-2",
				"token_type":   "bearer",
				"expires_in":   3600,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	push := func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		doc, _ := body["DocNumber"].(string)
		if doc == "" {
			doc, _ = body["invoice_number"].(string)
		}
		if doc == f.failDoc {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"Fault":"duplicate"}`))
			return
		}
		atomic.AddInt32(&f.pushes, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}
	mux.HandleFunc("/v3/company/9130/invoice", push)
	mux.HandleFunc("/invoices", push)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func syncInvoices() []domain.SyncInvoice {
	issue := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	return []domain.SyncInvoice{
		{ID: "1", InvoiceNumber: "GST-202403-0001", IssueDate: issue, DueDate: issue.AddDate(0, 0, 15), Currency: "INR", Subtotal: decimal.NewFromInt(100), TaxTotal: decimal.NewFromInt(18), Total: decimal.NewFromInt(118)},
		{ID: "2", InvoiceNumber: "GST-202403-0002", IssueDate: issue, DueDate: issue.AddDate(0, 0, 15), Currency: "INR", Subtotal: decimal.NewFromInt(50), TaxTotal: decimal.NewFromInt(9), Total: decimal.NewFromInt(59)},
	}
}

func TestQuickBooksConnectExchangesCode(t *testing.T) {
	fake := &fakeAccounting{}
	srv := fake.server(t)
	qb := NewQuickBooks(OAuthConfig{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL + "/token", APIBaseURL: srv.URL}, nil)

	creds, err := qb.Connect(context.Background(), domain.ConnectRequest{Provider: "quickbooks", Code: "auth-code", RealmID: "9130"})
	require.NoError(t, err)
	assert.Equal(t, "access-1", creds.AccessToken)
	assert.Equal(t, "refresh-1", creds.RefreshToken)
	assert.Equal(t, "9130", creds.Extra["realm_id"])
}

func TestQuickBooksConnectRequiresRealmAndCode(t *testing.T) {
	qb := NewQuickBooks(OAuthConfig{TokenURL: "http://127.0.0.1:1/token"}, nil)

	_, err := qb.Connect(context.Background(), domain.ConnectRequest{Code: "auth-code"})
	assert.True(t, errors.Is(err, domain.ErrMissingCredential))

	_, err = qb.Connect(context.Background(), domain.ConnectRequest{RealmID: "9130"})
	assert.True(t, errors.Is(err, domain.ErrMissingCredential))
}

func TestQuickBooksSyncRefreshesExpiredToken(t *testing.T) {
	fake := &fakeAccounting{failDoc: "GST-202403-0002"}
	srv := fake.server(t)
	qb := NewQuickBooks(OAuthConfig{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL + "/token", APIBaseURL: srv.URL}, nil)

	stored := domain.Credentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "bearer",
		Expiry:       time.Now().Add(-time.Hour),
		Extra:        map[string]string{"realm_id": "9130"},
	}
	result, err := qb.Sync(context.Background(), stored, syncInvoices())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pushed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"2"}, result.FailedIDs)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.refreshes))

	require.NotNil(t, result.Credentials)
	assert.Equal(t, "access-2", result.Credentials.AccessToken)
	assert.Equal(t, "refresh-1", result.Credentials.RefreshToken)
	assert.Equal(t, "9130", result.Credentials.Extra["realm_id"])
}

func TestZohoSyncKeepsValidToken(t *testing.T) {
	fake := &fakeAccounting{}
	srv := fake.server(t)
	zoho := NewZoho(OAuthConfig{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL + "/token", APIBaseURL: srv.URL}, nil)

	stored := domain.Credentials{
		AccessToken: "access-1",
		TokenType:   "bearer",
		Expiry:      time.Now().Add(time.Hour),
		Extra:       map[string]string{"organization_id": "600"},
	}
	result, err := zoho.Sync(context.Background(), stored, syncInvoices())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pushed)
	assert.Nil(t, result.Credentials)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fake.refreshes))
}

func TestTallyConnectOnly(t *testing.T) {
	tally := NewTally()
	assert.Equal(t, []string{"connect"}, domain.Capabilities(tally))

	creds, err := tally.Connect(context.Background(), domain.ConnectRequest{
		Provider:     "tally",
		Organization: "Acme Traders",
		Extra:        map[string]string{"host": "http://192.168.1.20:9000"},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:9000", creds.Extra["host"])
	assert.Equal(t, "Acme Traders", creds.Extra["company"])

	_, err = tally.Connect(context.Background(), domain.ConnectRequest{Provider: "tally"})
	assert.True(t, errors.Is(err, domain.ErrMissingCredential))
}
