package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-wsman/wsman"
)

const identifyResponse = `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope" xmlns:wsmid="http://schemas.dmtf.org/wbem/wsman/identity/1/wsmanidentity.xsd">
  <s:Header/>
  <s:Body>
    <wsmid:IdentifyResponse>
      <wsmid:ProtocolVersion>http://schemas.dmtf.org/wbem/wsman/1/wsman.xsd</wsmid:ProtocolVersion>
      <wsmid:ProductVendor>Openwsman Project</wsmid:ProductVendor>
      <wsmid:ProductVersion>2.0.0</wsmid:ProductVersion>
    </wsmid:IdentifyResponse>
  </s:Body>
</s:Envelope>`

const putResponse = `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Header/><s:Body/></s:Envelope>`

// basicServer accepts only admin:secret with Basic auth.
func basicServer(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Not allowed!"))
			return
		}
		w.Header().Set("Content-Type", "application/soap+xml;charset=UTF-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testConfig(user, pass string) Config {
	cfg := DefaultConfig()
	cfg.Username = user
	cfg.Password = pass
	return cfg
}

func TestNew(t *testing.T) {
	c, err := New("srv01", testConfig("admin", "secret"))
	require.NoError(t, err)
	assert.Equal(t, "http://srv01:5985/wsman", c.Endpoint().URL())
	assert.Equal(t, "basic", c.Endpoint().Auth().Scheme())
	assert.Equal(t, 100, c.Endpoint().MaxElements())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		cfg      Config
	}{
		{"missing password", "srv01", Config{Username: "admin"}},
		{"invalid endpoint option", "srv01", Config{AuthType: AuthNone, MaxEnvelopeSize: -1}},
		{"negotiate without credentials", "srv01", Config{AuthType: AuthNegotiate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.hostname, tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestClient_IdentifyWithBasicAuth(t *testing.T) {
	srv, calls := basicServer(t, identifyResponse)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	c, err := New(srv.URL+"/wsman", testConfig("admin", "secret"), WithLogger(logger))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		id, err := c.Identify(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Openwsman Project", id.ProductVendor)
	}
	assert.Equal(t, int32(2), calls.Load())

	// Only the first successful exchange is reported.
	assert.Equal(t, 1, strings.Count(logs.String(), `"subtype":"success"`))
	assert.NotContains(t, logs.String(), "secret")
}

func TestClient_Unauthorized(t *testing.T) {
	srv, _ := basicServer(t, identifyResponse)

	var logs bytes.Buffer
	c, err := New(srv.URL+"/wsman", testConfig("admin", "wrong"), WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	require.NoError(t, err)

	_, err = c.Enumerate(context.Background(), wsman.ResourceURIAllClasses, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, wsman.ErrUnauthorized)
	assert.Contains(t, logs.String(), `"outcome":"denied"`)
	assert.Contains(t, logs.String(), `"event_type":"authentication"`)
}

func TestClient_PutLogsOperation(t *testing.T) {
	srv, _ := basicServer(t, putResponse)

	var logs bytes.Buffer
	c, err := New(srv.URL+"/wsman", testConfig("admin", "secret"), WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	require.NoError(t, err)

	const uri = "http://schemas.example.com/wbem/wscim/1/Widget"
	err = c.Put(context.Background(), uri, wsman.NewElement(uri, "Widget"), wsman.Selectors{{Name: "Id", Value: "1"}})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"event_type":"operation"`)
	assert.Contains(t, logs.String(), `"subtype":"modify"`)
}

func TestClient_Metrics(t *testing.T) {
	srv, _ := basicServer(t, identifyResponse)
	reg := prometheus.NewRegistry()

	c, err := New(srv.URL+"/wsman", testConfig("admin", "secret"), WithMetrics(wsman.NewMetrics(reg)))
	require.NoError(t, err)
	_, err = c.Identify(context.Background())
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "wsman_client_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClient_Close(t *testing.T) {
	srv, calls := basicServer(t, identifyResponse)
	c, err := New(srv.URL+"/wsman", testConfig("admin", "secret"))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Identify(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
	_, _, err = c.Pull(context.Background(), "ctx", wsman.ResourceURIAllClasses, false)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, calls.Load())
}

func TestClient_ConnectionFailureLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := testConfig("admin", "secret")
	cfg.ReceiveTimeout = 50 * time.Millisecond
	var logs bytes.Buffer
	c, err := New(srv.URL+"/wsman", cfg, WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	require.NoError(t, err)

	_, err = c.Identify(context.Background())
	require.Error(t, err)
	assert.Equal(t, wsman.KindGeneric, wsman.KindOf(err))
	assert.Contains(t, logs.String(), `"event_type":"connection"`)
}
