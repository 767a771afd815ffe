package nic

import (
	"context"
	"net"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dyndnsd/internal/model"
)

// Store is the slice of the persistence layer the update protocol needs.
// *database.DB satisfies it.
type Store interface {
	GetActiveUser(username string) (*model.User, error)
	HostByFQDN(userID int64, fqdn string) (*model.Host, error)
	SetHostIPv4(hostID int64, address *string) error
	SetHostIPv6(hostID int64, address *string) error
	ClearHostAddresses(hostID int64) error
	LogAudit(entry model.AuditEntry) error
}

// Mirror pushes address changes into an external DNS service. A nil Mirror
// disables mirroring; mirror failures never influence the response tokens.
type Mirror interface {
	SyncAddress(ctx context.Context, fqdn, suffix, recordType string, newAddr, oldAddr *string) error
}

type Updater struct {
	store  Store
	mirror Mirror
	log    *zap.Logger
}

func NewUpdater(store Store, mirror Mirror, log *zap.Logger) *Updater {
	return &Updater{store: store, mirror: mirror, log: log}
}

// Update processes one batch. It returns exactly one response per requested
// hostname, in request order; clients correlate lines positionally with the
// hostnames they sent, even on failure. A non-nil error means the store
// broke mid-batch and the caller must answer 911.
//
// The very first step checks the credentials. Missing credentials or an
// unknown/inactive username fail the whole batch with badauth; each host's
// own password (hosts authenticate separately from the web login) then
// gates the per-host result.
func (u *Updater) Update(ctx context.Context, username, password string, hostnames []string, address *string, clientIP string) ([]Response, error) {
	if username == "" || password == "" {
		u.log.Warn("update request without credentials", zap.String("remote", clientIP))
		return repeat(respBadAuth, len(hostnames)), nil
	}

	user, err := u.store.GetActiveUser(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		u.log.Warn("update request for invalid username",
			zap.String("username", username), zap.String("remote", clientIP))
		return repeat(respBadAuth, len(hostnames)), nil
	}

	responses := make([]Response, 0, len(hostnames))
	for _, hostname := range hostnames {
		resp, err := u.updateOne(ctx, user, hostname, password, address, clientIP)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (u *Updater) updateOne(ctx context.Context, user *model.User, hostname, password string, address *string, clientIP string) (Response, error) {
	// A malformed address literal poisons only this hostname, not its
	// siblings in the batch.
	var ip net.IP
	if address != nil {
		ip = net.ParseIP(*address)
		if ip == nil {
			u.log.Warn("invalid IP address in update request",
				zap.String("hostname", hostname), zap.String("address", *address))
			return respAbuse, nil
		}
	}

	host, err := u.store.HostByFQDN(user.ID, hostname)
	if err != nil {
		return Response{}, err
	}
	if host == nil {
		u.log.Warn("no such host entry",
			zap.String("username", user.Username), zap.String("hostname", hostname))
		return respNoHost, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(host.PassHash), []byte(password)); err != nil {
		u.log.Warn("mismatching credentials for host", zap.String("hostname", hostname))
		return respBadAuth, nil
	}

	ipv6 := ip != nil && ip.To4() == nil

	// Byte-for-byte comparison against the stored column, not semantic IP
	// equality. Unchanged addresses are acknowledged without a write.
	if addressUnchanged(host, address, ipv6) {
		u.log.Debug("address has not changed",
			zap.String("hostname", hostname), zap.Stringp("address", address))
		return respNoChg(deref(address)), nil
	}

	// Snapshot before the write; the mirror needs the previous addresses
	// to build deletions.
	prev := *host

	switch {
	case address == nil:
		err = u.store.ClearHostAddresses(host.ID)
	case ipv6:
		err = u.store.SetHostIPv6(host.ID, address)
	default:
		err = u.store.SetHostIPv4(host.ID, address)
	}
	if err != nil {
		return Response{}, err
	}

	u.log.Info("host entry updated",
		zap.String("hostname", hostname), zap.Stringp("address", address))

	_ = u.store.LogAudit(model.AuditEntry{
		Username:   user.Username,
		Action:     "nic_update",
		HostName:   host.Hostname,
		SuffixName: host.SuffixName,
		Detail:     "address=" + derefOr(address, "offline"),
		IPAddress:  clientIP,
	})

	u.syncMirror(ctx, &prev, address, ipv6)

	return respGood(deref(address)), nil
}

// syncMirror forwards the change to the external DNS mirror, if configured.
func (u *Updater) syncMirror(ctx context.Context, host *model.Host, address *string, ipv6 bool) {
	if u.mirror == nil {
		return
	}

	sync := func(recordType string, newAddr, oldAddr *string) {
		if newAddr == nil && oldAddr == nil {
			return
		}
		if err := u.mirror.SyncAddress(ctx, host.FQDN(), host.SuffixName, recordType, newAddr, oldAddr); err != nil {
			u.log.Error("mirror sync failed",
				zap.String("hostname", host.FQDN()), zap.String("type", recordType), zap.Error(err))
		}
	}

	switch {
	case address == nil:
		sync("A", nil, host.Address)
		sync("AAAA", nil, host.AddressV6)
	case ipv6:
		sync("AAAA", address, host.AddressV6)
	default:
		sync("A", address, host.Address)
	}
}

func addressUnchanged(host *model.Host, address *string, ipv6 bool) bool {
	switch {
	case address == nil:
		return host.Address == nil && host.AddressV6 == nil
	case ipv6:
		return host.AddressV6 != nil && *host.AddressV6 == *address
	default:
		return host.Address != nil && *host.Address == *address
	}
}

func repeat(r Response, n int) []Response {
	rs := make([]Response, n)
	for i := range rs {
		rs[i] = r
	}
	return rs
}

func deref(s *string) string {
	return derefOr(s, "")
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
