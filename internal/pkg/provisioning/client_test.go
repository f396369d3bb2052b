package provisioning

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{APIKey: "test-key", BaseURL: srv.URL, HTTPClient: srv.Client()}
}

func TestNewAccountSuccess(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "new", r.PostFormValue("action"))
		assert.Equal(t, "test-key", r.PostFormValue("api_key"))
		assert.Equal(t, "prem-30", r.PostFormValue("package"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"id":"991","username":"sv_x81","password":"pw","url":"http://line.example.com","expire_date":"2026-09-28"}}`))
	})

	account, rec, err := client.NewAccount(context.Background(), NewAccountParams{
		PackageCode: "prem-30", DurationDays: 30, MaxDevices: 2, Note: "customer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "sv_x81", account.Username)
	assert.Equal(t, "991", account.ExternalID)

	exp, ok := account.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, 28, exp.Day())

	assert.Contains(t, rec.RequestJSON, `"api_key":"[redacted]"`)
	assert.NotContains(t, rec.RequestJSON, "test-key")
	assert.Contains(t, rec.ResponseJSON, "sv_x81")
}

func TestCallServerErrorIsTransient(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, _, err := client.NewAccount(context.Background(), NewAccountParams{PackageCode: "prem-30"})
	require.Error(t, err)

	var te *TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "HTTP_502", ErrorCode(err))
}

func TestCallErrorBodyIsBusinessRejection(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"error","code":"NO_CREDIT","message":"insufficient credit"}`))
	})

	_, _, err := client.RenewAccount(context.Background(), "sv_x81", "prem-30", 30)
	require.Error(t, err)

	var be *BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "NO_CREDIT", be.Code)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, "NO_CREDIT", ErrorCode(err))
}

func TestCallConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := &Client{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()}
	srv.Close()

	_, err := client.SetDeviceStatus(context.Background(), "sv_x81", "suspended")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "CONNECTION", ErrorCode(err))
}

func TestGetBalance(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "info", r.PostFormValue("action"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"balance":"743.50"}}`))
	})

	balance, err := client.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "743.5", balance.String())
}
