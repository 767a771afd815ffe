package pdns

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dyndnsd/internal/model"
)

func remoteLookup(t *testing.T, store Store, qname, qtype string) lookupReply {
	t.Helper()
	h := NewRemoteHandler(testResolver(store, true), zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /dnsapi/lookup/{qname}/{qtype}", h.Lookup)

	req := httptest.NewRequest(http.MethodGet, "/dnsapi/lookup/"+qname+"/"+qtype, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var reply lookupReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	return reply
}

func TestRemoteLookup(t *testing.T) {
	reply := remoteLookup(t, testStore(), "www.example.com", "A")
	require.Len(t, reply.Result, 1)
	assert.Equal(t, model.ResourceRecord{
		QName: "www.example.com", QType: "A", Content: "10.0.0.5", TTL: 60,
	}, reply.Result[0])
}

func TestRemoteLookupNoMatchIsEmptyList(t *testing.T) {
	reply := remoteLookup(t, testStore(), "nope.example.com", "A")
	assert.NotNil(t, reply.Result)
	assert.Empty(t, reply.Result)
}

func TestRemoteLookupStoreFailure(t *testing.T) {
	store := testStore()
	store.fail = true

	reply := remoteLookup(t, store, "www.example.com", "ANY")
	assert.Empty(t, reply.Result)
}
