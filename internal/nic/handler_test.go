package nic

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func get(t *testing.T, h http.HandlerFunc, target, username, password string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.9:51234"
	if username != "" || password != "" {
		req.SetBasicAuth(username, password)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHandlerIP(t *testing.T) {
	h := NewHandler(testUpdater(testStore(t)), zap.NewNop())

	code, body := get(t, h.IP, "/nic/ip", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "192.0.2.9", body)
}

func TestHandlerIPForwardedFor(t *testing.T) {
	h := NewHandler(testUpdater(testStore(t)), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/nic/ip", nil)
	req.RemoteAddr = "10.1.1.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.4, 10.1.1.1")
	rec := httptest.NewRecorder()
	h.IP(rec, req)
	assert.Equal(t, "203.0.113.4", rec.Body.String())
}

func TestHandlerUpdateMissingHostname(t *testing.T) {
	h := NewHandler(testUpdater(testStore(t)), zap.NewNop())

	code, body := get(t, h.Update, "/nic/update", "alice", "hostsecret")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "abuse", body)
}

func TestHandlerUpdateGoodThenNoChg(t *testing.T) {
	h := NewHandler(testUpdater(testStore(t)), zap.NewNop())

	_, body := get(t, h.Update, "/nic/update?hostname=www.example.com&myip=1.2.3.4", "alice", "hostsecret")
	assert.Equal(t, "good 1.2.3.4", body)

	_, body = get(t, h.Update, "/nic/update?hostname=www.example.com&myip=1.2.3.4", "alice", "hostsecret")
	assert.Equal(t, "nochg 1.2.3.4", body)
}

func TestHandlerUpdateBatchLines(t *testing.T) {
	h := NewHandler(testUpdater(testStore(t)), zap.NewNop())

	_, body := get(t, h.Update, "/nic/update?hostname=www.example.com,nope.example.com&myip=1.2.3.4", "alice", "hostsecret")
	assert.Equal(t, "good 1.2.3.4\nnohost", body)
}

func TestHandlerUpdateNoAuthHeader(t *testing.T) {
	h := NewHandler(testUpdater(testStore(t)), zap.NewNop())

	_, body := get(t, h.Update, "/nic/update?hostname=a.example.com,b.example.com&myip=1.2.3.4", "", "")
	assert.Equal(t, "badauth\nbadauth", body)
}

func TestHandlerUpdateOfflineOverridesMyIP(t *testing.T) {
	store := testStore(t)
	h := NewHandler(testUpdater(store), zap.NewNop())

	_, body := get(t, h.Update, "/nic/update?hostname=www.example.com&myip=1.2.3.4&offline=YES", "alice", "hostsecret")
	assert.Equal(t, "good", body)
	assert.Nil(t, store.hosts["1/www.example.com"].Address)
}

func TestHandlerUpdateStoreErrorIs911(t *testing.T) {
	store := testStore(t)
	store.fail = true
	h := NewHandler(testUpdater(store), zap.NewNop())

	code, body := get(t, h.Update, "/nic/update?hostname=a.example.com,b.example.com&myip=1.2.3.4", "alice", "hostsecret")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "911\n911", body)
}
