package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ArRuslan/ticketer/internal/model"
)

const userColumns = `id, email, password, first_name, last_name, phone_number, mfa_key, banned, role`

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// duplicateUser maps a duplicate entry on users to the column's sentinel.
func duplicateUser(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && strings.Contains(me.Message, "phone_number") {
		return ErrPhoneExists
	}
	return ErrEmailExists
}

func scanUser(row interface{ Scan(...interface{}) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.PhoneNumber, &u.MFAKey, &u.Banned, &u.Role)
	return u, err
}

// CreateUser inserts u and sets its id.  Emails are normalised to lower case.
func (t *sqlTx) CreateUser(ctx context.Context, u *model.User) error {
	if u.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &e
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (email, password, first_name, last_name, phone_number, mfa_key, banned, role) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.PhoneNumber, u.MFAKey, u.Banned, int(u.Role))
	if err != nil {
		if isDuplicate(err) {
			return duplicateUser(err)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetUser fetches a user by id.
func (t *sqlTx) GetUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	return u, notFound(err)
}

// GetUserByEmail fetches a user by normalised email.
func (t *sqlTx) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, email))
	return u, notFound(err)
}

// SetUserMFA stores or clears (nil) the user's TOTP secret.
func (t *sqlTx) SetUserMFA(ctx context.Context, userID uint64, key *string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE users SET mfa_key = ? WHERE id = ?`, key, userID)
	return err
}

// UpdateUser persists the profile columns of u: email, password, names
// and phone number.
func (t *sqlTx) UpdateUser(ctx context.Context, u model.User) error {
	if u.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &e
	}
	_, err := t.tx.ExecContext(ctx,
		`UPDATE users SET email = ?, password = ?, first_name = ?, last_name = ?, phone_number = ? WHERE id = ?`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.PhoneNumber, u.ID)
	if isDuplicate(err) {
		return duplicateUser(err)
	}
	return err
}

// PhoneNumberUsed reports whether a user other than exceptUserID has phone.
func (t *sqlTx) PhoneNumberUsed(ctx context.Context, phone int64, exceptUserID uint64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE phone_number = ? AND id <> ?`, phone, exceptUserID).Scan(&n)
	return n > 0, err
}

// CreateSession inserts s and sets its id.
func (t *sqlTx) CreateSession(ctx context.Context, s *model.Session) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)`,
		s.UserID, s.Token, s.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetSession returns the session matching all three of id, owner and token.
func (t *sqlTx) GetSession(ctx context.Context, sessionID, userID uint64, token string) (model.Session, error) {
	var s model.Session
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at FROM sessions WHERE id = ? AND user_id = ? AND token = ? LIMIT 1`,
		sessionID, userID, token).Scan(&s.ID, &s.UserID, &s.Token, &s.ExpiresAt)
	return s, notFound(err)
}

// DeleteSession removes a session; deleting a missing session is not an error.
func (t *sqlTx) DeleteSession(ctx context.Context, sessionID uint64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

// GetExternalAuth finds the link of an external account.
func (t *sqlTx) GetExternalAuth(ctx context.Context, service, serviceID string) (model.ExternalAuth, error) {
	var a model.ExternalAuth
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, user_id, service, service_id, access_token, refresh_token, expires_at
		 FROM external_auths WHERE service = ? AND service_id = ? LIMIT 1`,
		service, serviceID).Scan(&a.ID, &a.UserID, &a.Service, &a.ServiceID, &a.AccessToken, &a.RefreshToken, &a.ExpiresAt)
	return a, notFound(err)
}

// HasExternalAuth reports whether the user has linked any external account.
func (t *sqlTx) HasExternalAuth(ctx context.Context, userID uint64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM external_auths WHERE user_id = ?`, userID).Scan(&n)
	return n > 0, err
}

// SaveExternalAuth inserts a link or refreshes the tokens of an existing
// one (matched by service and service id).
func (t *sqlTx) SaveExternalAuth(ctx context.Context, a *model.ExternalAuth) error {
	if a.ExpiresAt.IsZero() {
		a.ExpiresAt = time.Now().UTC()
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO external_auths (user_id, service, service_id, access_token, refresh_token, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE access_token = VALUES(access_token), refresh_token = VALUES(refresh_token), expires_at = VALUES(expires_at)`,
		a.UserID, a.Service, a.ServiceID, a.AccessToken, a.RefreshToken, a.ExpiresAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		a.ID = uint64(id)
	}
	return nil
}
