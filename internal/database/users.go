package database

import (
	"database/sql"

	"golang.org/x/crypto/bcrypt"

	"dyndnsd/internal/model"
)

const userColumns = "id, username, pass_hash, email, admin, active, authcode, max_hosts, created_at"

func scanUser(row *sql.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.PassHash, &u.Email, &u.Admin,
		&u.Active, &u.Authcode, &u.MaxHosts, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (db *DB) GetUserByUsername(username string) (*model.User, error) {
	return scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
}

// GetActiveUser returns the user only if the account is activated. This is
// the lookup the update protocol authenticates against.
func (db *DB) GetActiveUser(username string) (*model.User, error) {
	return scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE username = $1 AND active", username))
}

func (db *DB) ListUsers() ([]model.User, error) {
	rows, err := db.conn.Query("SELECT " + userColumns + " FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PassHash, &u.Email, &u.Admin,
			&u.Active, &u.Authcode, &u.MaxHosts, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) CreateUser(username, email, password string, admin, active bool, authcode *string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		"INSERT INTO users (username, email, pass_hash, admin, active, authcode) VALUES ($1, $2, $3, $4, $5, $6)",
		username, email, string(hash), admin, active, authcode,
	)
	return err
}

// ActivateUser activates the account matching username and authcode and
// clears the code. Returns false when no row matched.
func (db *DB) ActivateUser(username, authcode string) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE users SET active = TRUE, authcode = NULL WHERE username = $1 AND authcode = $2",
		username, authcode,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *DB) SetAuthcode(username string, authcode *string) error {
	_, err := db.conn.Exec("UPDATE users SET authcode = $1 WHERE username = $2", authcode, username)
	return err
}

// ResetPassword sets a new password for the account matching username and
// authcode, consuming the code. Returns false when no row matched.
func (db *DB) ResetPassword(username, authcode, newPassword string) (bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), 12)
	if err != nil {
		return false, err
	}
	res, err := db.conn.Exec(
		"UPDATE users SET pass_hash = $1, authcode = NULL WHERE username = $2 AND authcode = $3",
		string(hash), username, authcode,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *DB) UpdateUserPassword(username, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), 12)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec("UPDATE users SET pass_hash = $1 WHERE username = $2",
		string(hash), username)
	return err
}

func (db *DB) UpdateUserEmail(username, email string) error {
	_, err := db.conn.Exec("UPDATE users SET email = $1 WHERE username = $2", email, username)
	return err
}

func (db *DB) SetUserActive(username string, active bool) error {
	_, err := db.conn.Exec("UPDATE users SET active = $1 WHERE username = $2", active, username)
	return err
}

func (db *DB) SetUserMaxHosts(username string, maxHosts *int) error {
	_, err := db.conn.Exec("UPDATE users SET max_hosts = $1 WHERE username = $2", maxHosts, username)
	return err
}

func (db *DB) DeleteUser(username string) error {
	_, err := db.conn.Exec("DELETE FROM users WHERE username = $1", username)
	return err
}

// AuthenticateUser verifies the web login password of an active user.
// Returns nil without error on unknown user, inactive account or password
// mismatch.
func (db *DB) AuthenticateUser(username, password string) (*model.User, error) {
	u, err := db.GetActiveUser(username)
	if err != nil || u == nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(password)); err != nil {
		return nil, nil
	}
	return u, nil
}

func (db *DB) CreateLDAPUser(username, email string, admin bool) error {
	_, err := db.conn.Exec(
		`INSERT INTO users (username, email, pass_hash, admin, active)
		 VALUES ($1, $2, '', $3, TRUE)
		 ON CONFLICT(username) DO UPDATE SET admin = $3, email = $2`,
		username, email, admin,
	)
	return err
}

func (db *DB) CountUsers() (int64, error) {
	var n int64
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
