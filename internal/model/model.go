package model

import "time"

type User struct {
	ID        int64
	Username  string
	PassHash  string
	Email     string
	Admin     bool
	Active    bool
	Authcode  *string
	MaxHosts  *int
	CreatedAt time.Time
}

type Suffix struct {
	ID        int64
	Name      string
	HostCount int64
}

type Host struct {
	ID          int64
	Hostname    string
	SuffixID    int64
	SuffixName  string
	UserID      int64
	Address     *string
	AddressV6   *string
	PassHash    string
	Description *string
	// Abuse disables DNS answering for the host when non-nil. The text is
	// the reason shown to the owner.
	Abuse     *string
	UpdatedAt time.Time
	// Owner is the owning user's name. Only the admin listing fills it.
	Owner string
}

// FQDN returns the full name the host answers under.
func (h Host) FQDN() string {
	return h.Hostname + "." + h.SuffixName
}

type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type AuditEntry struct {
	ID         int64
	Username   string
	Action     string
	HostName   string
	SuffixName string
	Detail     string
	IPAddress  string
	CreatedAt  time.Time
}

// ResourceRecord is one answer handed to the DNS server by the remote
// backend. Field names follow the backend protocol.
type ResourceRecord struct {
	QName    string `json:"qname"`
	QType    string `json:"qtype"`
	Content  string `json:"content"`
	TTL      int    `json:"ttl"`
	Priority int    `json:"priority"`
}
