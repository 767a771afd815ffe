package database

import (
	"database/sql"

	"golang.org/x/crypto/bcrypt"

	"dyndnsd/internal/model"
)

const hostColumns = `host.id, host.hostname, host.suffix_id, suffix.name, host.user_id,
	host.address, host.address_v6, host.pass_hash, host.description, host.abuse, host.updated_at`

func scanHost(row *sql.Row) (*model.Host, error) {
	h := &model.Host{}
	err := row.Scan(&h.ID, &h.Hostname, &h.SuffixID, &h.SuffixName, &h.UserID,
		&h.Address, &h.AddressV6, &h.PassHash, &h.Description, &h.Abuse, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (db *DB) ListHostsForUser(userID int64) ([]model.Host, error) {
	rows, err := db.conn.Query(`
		SELECT `+hostColumns+`
		FROM hosts AS host
		JOIN suffixes AS suffix ON suffix.id = host.suffix_id
		WHERE host.user_id = $1
		ORDER BY suffix.name, host.hostname`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		var h model.Host
		if err := rows.Scan(&h.ID, &h.Hostname, &h.SuffixID, &h.SuffixName, &h.UserID,
			&h.Address, &h.AddressV6, &h.PassHash, &h.Description, &h.Abuse, &h.UpdatedAt); err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

func (db *DB) GetHostForUser(hostID, userID int64) (*model.Host, error) {
	return scanHost(db.conn.QueryRow(`
		SELECT `+hostColumns+`
		FROM hosts AS host
		JOIN suffixes AS suffix ON suffix.id = host.suffix_id
		WHERE host.id = $1 AND host.user_id = $2`, hostID, userID))
}

// HostByFQDN finds the host of the given user whose hostname.suffix equals
// fqdn. This is the lookup the update protocol resolves hostnames with.
func (db *DB) HostByFQDN(userID int64, fqdn string) (*model.Host, error) {
	return scanHost(db.conn.QueryRow(`
		SELECT `+hostColumns+`
		FROM hosts AS host
		JOIN suffixes AS suffix ON suffix.id = host.suffix_id
		WHERE host.user_id = $1
		  AND host.hostname || '.' || suffix.name = $2`, userID, fqdn))
}

// AnswerHost finds a host by full name for DNS answering. Hosts with a
// non-null abuse reason never answer.
func (db *DB) AnswerHost(fqdn string) (*model.Host, error) {
	return scanHost(db.conn.QueryRow(`
		SELECT `+hostColumns+`
		FROM hosts AS host
		JOIN suffixes AS suffix ON suffix.id = host.suffix_id
		WHERE host.abuse IS NULL
		  AND host.hostname || '.' || suffix.name = $1`, fqdn))
}

// ListHosts returns every host with its owner, for the admin view.
func (db *DB) ListHosts() ([]model.Host, error) {
	rows, err := db.conn.Query(`
		SELECT ` + hostColumns + `, users.username
		FROM hosts AS host
		JOIN suffixes AS suffix ON suffix.id = host.suffix_id
		JOIN users ON users.id = host.user_id
		ORDER BY suffix.name, host.hostname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		var h model.Host
		if err := rows.Scan(&h.ID, &h.Hostname, &h.SuffixID, &h.SuffixName, &h.UserID,
			&h.Address, &h.AddressV6, &h.PassHash, &h.Description, &h.Abuse, &h.UpdatedAt,
			&h.Owner); err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

func (db *DB) GetHost(hostID int64) (*model.Host, error) {
	return scanHost(db.conn.QueryRow(`
		SELECT `+hostColumns+`
		FROM hosts AS host
		JOIN suffixes AS suffix ON suffix.id = host.suffix_id
		WHERE host.id = $1`, hostID))
}

func (db *DB) CountHostsForUser(userID int64) (int64, error) {
	var n int64
	err := db.conn.QueryRow("SELECT COUNT(*) FROM hosts WHERE user_id = $1", userID).Scan(&n)
	return n, err
}

func (db *DB) CreateHost(userID, suffixID int64, hostname string, address *string, password, description string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(`
		INSERT INTO hosts (hostname, suffix_id, user_id, address, pass_hash, description)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		hostname, suffixID, userID, address, string(hash), description)
	return err
}

// SetHostIPv4 writes the IPv4 address (nil for offline) and bumps the
// update timestamp.
func (db *DB) SetHostIPv4(hostID int64, address *string) error {
	_, err := db.conn.Exec("UPDATE hosts SET address = $1, updated_at = NOW() WHERE id = $2",
		address, hostID)
	return err
}

// SetHostIPv6 writes the IPv6 address (nil for offline) and bumps the
// update timestamp.
func (db *DB) SetHostIPv6(hostID int64, address *string) error {
	_, err := db.conn.Exec("UPDATE hosts SET address_v6 = $1, updated_at = NOW() WHERE id = $2",
		address, hostID)
	return err
}

// ClearHostAddresses takes the host fully offline.
func (db *DB) ClearHostAddresses(hostID int64) error {
	_, err := db.conn.Exec(
		"UPDATE hosts SET address = NULL, address_v6 = NULL, updated_at = NOW() WHERE id = $1",
		hostID)
	return err
}

func (db *DB) UpdateHostDetails(hostID, userID int64, address *string, description string) error {
	_, err := db.conn.Exec(`
		UPDATE hosts SET address = $1, description = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4`,
		address, description, hostID, userID)
	return err
}

func (db *DB) UpdateHostPassword(hostID, userID int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec("UPDATE hosts SET pass_hash = $1 WHERE id = $2 AND user_id = $3",
		string(hash), hostID, userID)
	return err
}

func (db *DB) DeleteHost(hostID, userID int64) error {
	_, err := db.conn.Exec("DELETE FROM hosts WHERE id = $1 AND user_id = $2", hostID, userID)
	return err
}

func (db *DB) SetHostAbuse(hostID int64, reason *string) error {
	_, err := db.conn.Exec("UPDATE hosts SET abuse = $1 WHERE id = $2", reason, hostID)
	return err
}

func (db *DB) CountHosts() (int64, error) {
	var n int64
	err := db.conn.QueryRow("SELECT COUNT(*) FROM hosts").Scan(&n)
	return n, err
}
