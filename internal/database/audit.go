package database

import (
	"database/sql"

	"dyndnsd/internal/model"
)

func (db *DB) LogAudit(entry model.AuditEntry) error {
	_, err := db.conn.Exec(
		`INSERT INTO audit_log (username, action, host_name, suffix_name, detail, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Username, entry.Action, entry.HostName, entry.SuffixName,
		entry.Detail, entry.IPAddress,
	)
	return err
}

func (db *DB) ListAuditLog(limit, offset int) ([]model.AuditEntry, int, error) {
	var total int
	_ = db.conn.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&total)

	rows, err := db.conn.Query(
		`SELECT id, username, action, host_name, suffix_name, detail, ip_address, created_at
		 FROM audit_log
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var hostName, suffixName, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &hostName, &suffixName,
			&detail, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.HostName = hostName.String
		e.SuffixName = suffixName.String
		e.Detail = detail.String
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
