package nic

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dyndnsd/internal/model"
)

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

type fakeStore struct {
	users  map[string]*model.User
	hosts  map[string]*model.Host // keyed by "<userID>/<fqdn>"
	audits []model.AuditEntry
	writes int
	fail   bool
}

func (f *fakeStore) GetActiveUser(username string) (*model.User, error) {
	if f.fail {
		return nil, errors.New("store down")
	}
	return f.users[username], nil
}

func (f *fakeStore) HostByFQDN(userID int64, fqdn string) (*model.Host, error) {
	if f.fail {
		return nil, errors.New("store down")
	}
	return f.hosts[fmt.Sprintf("%d/%s", userID, fqdn)], nil
}

func (f *fakeStore) host(id int64) *model.Host {
	for _, h := range f.hosts {
		if h.ID == id {
			return h
		}
	}
	return nil
}

func (f *fakeStore) SetHostIPv4(hostID int64, address *string) error {
	f.writes++
	f.host(hostID).Address = address
	return nil
}

func (f *fakeStore) SetHostIPv6(hostID int64, address *string) error {
	f.writes++
	f.host(hostID).AddressV6 = address
	return nil
}

func (f *fakeStore) ClearHostAddresses(hostID int64) error {
	f.writes++
	h := f.host(hostID)
	h.Address = nil
	h.AddressV6 = nil
	return nil
}

func (f *fakeStore) LogAudit(entry model.AuditEntry) error {
	f.audits = append(f.audits, entry)
	return nil
}

func str(s string) *string { return &s }

func testStore(t *testing.T) *fakeStore {
	t.Helper()
	return &fakeStore{
		users: map[string]*model.User{
			"alice": {ID: 1, Username: "alice", Active: true},
		},
		hosts: map[string]*model.Host{
			"1/www.example.com": {
				ID: 10, Hostname: "www", SuffixName: "example.com", UserID: 1,
				Address: str("10.0.0.5"), PassHash: hash(t, "hostsecret"),
			},
			"2/other.example.com": {
				ID: 20, Hostname: "other", SuffixName: "example.com", UserID: 2,
				PassHash: hash(t, "hostsecret"),
			},
		},
	}
}

func testUpdater(store Store) *Updater {
	return NewUpdater(store, nil, zap.NewNop())
}

func codes(responses []Response) []string {
	out := make([]string, len(responses))
	for i, r := range responses {
		out[i] = r.Code
	}
	return out
}

func TestUpdateBatchOrder(t *testing.T) {
	store := testStore(t)
	u := testUpdater(store)

	responses, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com", "unknown.example.com", "www.example.com"},
		str("1.2.3.4"), "192.0.2.1")
	require.NoError(t, err)

	require.Len(t, responses, 3)
	assert.Equal(t, []string{CodeGood, CodeNoHost, CodeNoChg}, codes(responses))
	assert.Equal(t, "good 1.2.3.4", responses[0].String())
	assert.Equal(t, "nochg 1.2.3.4", responses[2].String())
}

func TestUpdateIdempotent(t *testing.T) {
	store := testStore(t)
	u := testUpdater(store)

	first, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, str("1.2.3.4"), "")
	require.NoError(t, err)
	require.Equal(t, "good 1.2.3.4", first[0].String())

	second, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, str("1.2.3.4"), "")
	require.NoError(t, err)
	assert.Equal(t, "nochg 1.2.3.4", second[0].String())
	assert.Equal(t, 1, store.writes)
}

func TestUpdateForeignHostIsNoHost(t *testing.T) {
	store := testStore(t)
	u := testUpdater(store)

	// other.example.com exists but belongs to a different user.
	responses, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"other.example.com"}, str("1.2.3.4"), "")
	require.NoError(t, err)
	assert.Equal(t, CodeNoHost, responses[0].Code)
	assert.Equal(t, 0, store.writes)
}

func TestUpdateUnknownUser(t *testing.T) {
	store := testStore(t)
	u := testUpdater(store)

	responses, err := u.Update(context.Background(), "mallory", "whatever",
		[]string{"a.example.com", "b.example.com"}, str("1.2.3.4"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{CodeBadAuth, CodeBadAuth}, codes(responses))
	assert.Equal(t, 0, store.writes)
}

func TestUpdateMissingCredentials(t *testing.T) {
	store := testStore(t)
	u := testUpdater(store)

	responses, err := u.Update(context.Background(), "", "",
		[]string{"www.example.com"}, str("1.2.3.4"), "")
	require.NoError(t, err)
	assert.Equal(t, CodeBadAuth, responses[0].Code)
	assert.Equal(t, 0, store.writes)
}

func TestUpdateWrongHostPassword(t *testing.T) {
	store := testStore(t)
	u := testUpdater(store)

	responses, err := u.Update(context.Background(), "alice", "not-the-host-password",
		[]string{"www.example.com"}, str("1.2.3.4"), "")
	require.NoError(t, err)
	assert.Equal(t, CodeBadAuth, responses[0].Code)
	assert.Equal(t, 0, store.writes)
	assert.Equal(t, str("10.0.0.5"), store.hosts["1/www.example.com"].Address)
}

func TestUpdateOffline(t *testing.T) {
	store := testStore(t)
	u := testUpdater(store)

	responses, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "good", responses[0].String())
	assert.Nil(t, store.hosts["1/www.example.com"].Address)
	assert.Nil(t, store.hosts["1/www.example.com"].AddressV6)

	responses, err = u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "nochg", responses[0].String())
	assert.Equal(t, 1, store.writes)
}

func TestUpdateInvalidAddress(t *testing.T) {
	store := testStore(t)
	u := testUpdater(store)

	responses, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, str("not-an-ip"), "")
	require.NoError(t, err)
	assert.Equal(t, CodeAbuse, responses[0].Code)
	assert.Equal(t, 0, store.writes)
}

func TestUpdateIPv6TargetsV6Column(t *testing.T) {
	store := testStore(t)
	u := testUpdater(store)

	responses, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, str("2001:db8::1"), "")
	require.NoError(t, err)
	assert.Equal(t, "good 2001:db8::1", responses[0].String())

	host := store.hosts["1/www.example.com"]
	assert.Equal(t, str("2001:db8::1"), host.AddressV6)
	// The IPv4 address is untouched by a v6 update.
	assert.Equal(t, str("10.0.0.5"), host.Address)
}

func TestUpdateStoreError(t *testing.T) {
	store := testStore(t)
	store.fail = true
	u := testUpdater(store)

	_, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, str("1.2.3.4"), "")
	assert.Error(t, err)
}

func TestUpdateWritesAudit(t *testing.T) {
	store := testStore(t)
	u := testUpdater(store)

	_, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, str("1.2.3.4"), "192.0.2.7")
	require.NoError(t, err)

	require.Len(t, store.audits, 1)
	assert.Equal(t, "nic_update", store.audits[0].Action)
	assert.Equal(t, "www", store.audits[0].HostName)
	assert.Equal(t, "192.0.2.7", store.audits[0].IPAddress)
}

type fakeMirror struct {
	calls []string
	err   error
}

func (m *fakeMirror) SyncAddress(_ context.Context, fqdn, suffix, recordType string, newAddr, oldAddr *string) error {
	m.calls = append(m.calls, fmt.Sprintf("%s %s %s->%s", recordType, fqdn, derefOr(oldAddr, "-"), derefOr(newAddr, "-")))
	return m.err
}

func TestUpdateMirrorsChanges(t *testing.T) {
	store := testStore(t)
	mirror := &fakeMirror{}
	u := NewUpdater(store, mirror, zap.NewNop())

	_, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, str("1.2.3.4"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A www.example.com 10.0.0.5->1.2.3.4"}, mirror.calls)

	mirror.calls = nil
	_, err = u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A www.example.com 1.2.3.4->-"}, mirror.calls)
}

func TestUpdateMirrorFailureKeepsGood(t *testing.T) {
	store := testStore(t)
	mirror := &fakeMirror{err: errors.New("throttled")}
	u := NewUpdater(store, mirror, zap.NewNop())

	responses, err := u.Update(context.Background(), "alice", "hostsecret",
		[]string{"www.example.com"}, str("1.2.3.4"), "")
	require.NoError(t, err)
	assert.Equal(t, "good 1.2.3.4", responses[0].String())
}
