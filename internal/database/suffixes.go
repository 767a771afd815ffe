package database

import (
	"database/sql"

	"dyndnsd/internal/model"
)

func (db *DB) ListSuffixes() ([]model.Suffix, error) {
	rows, err := db.conn.Query(`
		SELECT suffix.id, suffix.name, COUNT(host.id)
		FROM suffixes AS suffix
		LEFT JOIN hosts AS host ON host.suffix_id = suffix.id
		GROUP BY suffix.id, suffix.name
		ORDER BY suffix.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suffixes []model.Suffix
	for rows.Next() {
		var s model.Suffix
		if err := rows.Scan(&s.ID, &s.Name, &s.HostCount); err != nil {
			return nil, err
		}
		suffixes = append(suffixes, s)
	}
	return suffixes, rows.Err()
}

func (db *DB) GetSuffixByName(name string) (*model.Suffix, error) {
	s := &model.Suffix{}
	err := db.conn.QueryRow("SELECT id, name FROM suffixes WHERE name = $1", name).
		Scan(&s.ID, &s.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) CreateSuffix(name string) error {
	_, err := db.conn.Exec("INSERT INTO suffixes (name) VALUES ($1)", name)
	return err
}

// DeleteSuffix fails with a foreign key violation while hosts still
// reference the suffix. The admin handler surfaces that to the operator.
func (db *DB) DeleteSuffix(id int64) error {
	_, err := db.conn.Exec("DELETE FROM suffixes WHERE id = $1", id)
	return err
}

func (db *DB) CountSuffixes() (int64, error) {
	var n int64
	err := db.conn.QueryRow("SELECT COUNT(*) FROM suffixes").Scan(&n)
	return n, err
}
