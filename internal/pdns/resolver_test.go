package pdns

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dyndnsd/internal/config"
	"dyndnsd/internal/model"
)

type fakeStore struct {
	suffixes map[string]*model.Suffix
	hosts    map[string]*model.Host
	fail     bool
}

func (f *fakeStore) GetSuffixByName(name string) (*model.Suffix, error) {
	if f.fail {
		return nil, errors.New("store down")
	}
	return f.suffixes[name], nil
}

func (f *fakeStore) AnswerHost(fqdn string) (*model.Host, error) {
	if f.fail {
		return nil, errors.New("store down")
	}
	h, ok := f.hosts[fqdn]
	if !ok || h.Abuse != nil {
		return nil, nil
	}
	return h, nil
}

func str(s string) *string { return &s }

func testStore() *fakeStore {
	return &fakeStore{
		suffixes: map[string]*model.Suffix{
			"example.com": {ID: 1, Name: "example.com"},
		},
		hosts: map[string]*model.Host{
			"www.example.com": {
				ID: 10, Hostname: "www", SuffixName: "example.com",
				Address: str("10.0.0.5"), AddressV6: str("2001:db8::5"),
			},
			"v4only.example.com": {
				ID: 11, Hostname: "v4only", SuffixName: "example.com",
				Address: str("10.0.0.6"),
			},
			"offline.example.com": {
				ID: 12, Hostname: "offline", SuffixName: "example.com",
			},
			"banned.example.com": {
				ID: 13, Hostname: "banned", SuffixName: "example.com",
				Address: str("10.0.0.7"), Abuse: str("spam"),
			},
		},
	}
}

func testResolver(store Store, answerSOA bool) *Resolver {
	return NewResolver(store, config.DNSConfig{TTL: 60, SOATTL: 3600, AnswerSOA: answerSOA}, zap.NewNop())
}

func TestLookupA(t *testing.T) {
	r := testResolver(testStore(), true)

	records := r.Lookup("www.example.com", "A")
	require.Len(t, records, 1)
	assert.Equal(t, model.ResourceRecord{
		QName: "www.example.com", QType: "A", Content: "10.0.0.5", TTL: 60,
	}, records[0])
}

func TestLookupAAAA(t *testing.T) {
	r := testResolver(testStore(), true)

	records := r.Lookup("www.example.com", "AAAA")
	require.Len(t, records, 1)
	assert.Equal(t, "2001:db8::5", records[0].Content)
	assert.Equal(t, "AAAA", records[0].QType)

	assert.Empty(t, r.Lookup("v4only.example.com", "AAAA"))
}

func TestLookupTrailingDot(t *testing.T) {
	r := testResolver(testStore(), true)

	records := r.Lookup("www.example.com.", "A")
	require.Len(t, records, 1)
	assert.Equal(t, "www.example.com", records[0].QName)
}

func TestLookupSOA(t *testing.T) {
	r := testResolver(testStore(), true)

	records := r.Lookup("example.com", "SOA")
	require.Len(t, records, 1)
	assert.Equal(t, "SOA", records[0].QType)
	assert.Equal(t, 3600, records[0].TTL)
	assert.Equal(t, "ns.example.com hostmaster.example.com 0 86400 7200 3600000 172800", records[0].Content)

	assert.Empty(t, r.Lookup("other.org", "SOA"))
}

func TestLookupSOADisabled(t *testing.T) {
	r := testResolver(testStore(), false)
	assert.Empty(t, r.Lookup("example.com", "SOA"))
}

func TestLookupAny(t *testing.T) {
	r := testResolver(testStore(), true)

	// ANY on a suffix name returns the SOA; on a host both address records.
	records := r.Lookup("example.com", "ANY")
	require.Len(t, records, 1)
	assert.Equal(t, "SOA", records[0].QType)

	records = r.Lookup("www.example.com", "ANY")
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].QType)
	assert.Equal(t, "AAAA", records[1].QType)
}

func TestLookupIgnoresOtherTypes(t *testing.T) {
	r := testResolver(testStore(), true)
	assert.Empty(t, r.Lookup("www.example.com", "MX"))
	assert.Empty(t, r.Lookup("www.example.com", "TXT"))
}

func TestLookupOfflineHost(t *testing.T) {
	r := testResolver(testStore(), true)
	assert.Empty(t, r.Lookup("offline.example.com", "A"))
}

func TestLookupDisabledHost(t *testing.T) {
	r := testResolver(testStore(), true)
	assert.Empty(t, r.Lookup("banned.example.com", "A"))
}

func TestLookupStoreFailureYieldsEmpty(t *testing.T) {
	store := testStore()
	store.fail = true
	r := testResolver(store, true)

	assert.Empty(t, r.Lookup("www.example.com", "ANY"))
}
