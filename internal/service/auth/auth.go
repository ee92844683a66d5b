// Package auth manages accounts and sessions: password and Google
// sign-in, session claims, and the TOTP settings of a profile.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/claims"
	"github.com/ArRuslan/ticketer/internal/gateway"
	"github.com/ArRuslan/ticketer/internal/mfa"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/repository"
	"github.com/ArRuslan/ticketer/internal/utils"
)

// GoogleService is the external identity provider.
type GoogleService interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (gateway.GoogleProfile, *oauth2.Token, error)
}

// Config holds tunables of the auth service.
type Config struct {
	BcryptCost int
	SessionTTL time.Duration
}

// Service authenticates users.
type Service struct {
	store  repository.Store
	codec  *claims.Codec
	google GoogleService
	cfg    Config
	now    func() time.Time
}

// New builds a Service.  google may be nil when Google sign-in is not
// configured.
func New(store repository.Store, codec *claims.Codec, google GoogleService, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	return &Service{store: store, codec: codec, google: google, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Session is a signed session claim and its expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

func (s *Service) newSession(ctx context.Context, tx repository.Tx, userID uint64) (Session, error) {
	raw, err := utils.RandomToken(utils.SessionTokenBytes)
	if err != nil {
		return Session{}, err
	}
	sess := &model.Session{UserID: userID, Token: raw, ExpiresAt: s.now().Add(s.cfg.SessionTTL)}
	if err := tx.CreateSession(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	tok, err := s.codec.EncodeSession(claims.SessionClaim{UserID: userID, SessionID: sess.ID, Token: raw}, sess.ExpiresAt)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok, ExpiresAt: sess.ExpiresAt}, nil
}

// Register creates a password account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (Session, error) {
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return Session{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	var out Session
	err = s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		u := &model.User{Email: &email, PasswordHash: &hash, FirstName: firstName, LastName: lastName}
		if err := tx.CreateUser(ctx, u); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return apperr.UserExists
			}
			return err
		}
		out, err = s.newSession(ctx, tx, u.ID)
		return err
	})
	return out, err
}

// Login signs a user in with email and password, plus a TOTP code when
// MFA is enabled.
func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (Session, error) {
	var out Session
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.GetUserByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.WrongCredentials
		}
		if err != nil {
			return err
		}
		if u.Banned {
			return apperr.UserBanned
		}
		if !utils.VerifyPassword(u.PasswordHash, password) {
			return apperr.WrongCredentials
		}
		if u.MFAEnabled() && !mfa.Check(*u.MFAKey, mfaCode, s.now()) {
			return apperr.WrongMFACode
		}
		out, err = s.newSession(ctx, tx, u.ID)
		return err
	})
	return out, err
}

// Authenticate resolves a session claim to its live session and user.
func (s *Service) Authenticate(ctx context.Context, token string) (model.User, model.Session, error) {
	c, ok := s.codec.DecodeSession(token)
	if !ok {
		return model.User{}, model.Session{}, apperr.InvalidToken
	}
	var (
		u    model.User
		sess model.Session
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		sess, err = tx.GetSession(ctx, c.SessionID, c.UserID, c.Token)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.InvalidToken
		}
		if err != nil {
			return err
		}
		if !s.now().Before(sess.ExpiresAt) {
			return apperr.InvalidToken
		}
		u, err = tx.GetUser(ctx, c.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.InvalidToken
		}
		if err != nil {
			return err
		}
		if u.Banned {
			return apperr.UserBanned
		}
		return nil
	})
	return u, sess, err
}

// Logout deletes a session, invalidating its claim.
func (s *Service) Logout(ctx context.Context, sessionID uint64) error {
	return s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.DeleteSession(ctx, sessionID)
	})
}

// UpdateMFA enables (mfaKey non-nil) or disables (nil) TOTP on a password
// account.  Both directions require the password and a code that is
// valid for the key being enabled or the key being removed.
func (s *Service) UpdateMFA(ctx context.Context, user model.User, password string, mfaKey *string, code string) (model.User, error) {
	if mfaKey != nil && user.MFAEnabled() {
		return user, apperr.MFAAlreadyEnabled
	}
	if mfaKey == nil && !user.MFAEnabled() {
		return user, apperr.MFAAlreadyDisabled
	}
	if password == "" {
		return user, apperr.NeedPassword
	}
	if !utils.VerifyPassword(user.PasswordHash, password) {
		return user, apperr.WrongPassword
	}
	now := s.now()
	if mfaKey != nil {
		if !mfa.ValidSecret(*mfaKey) {
			return user, apperr.WrongMFAKey
		}
		if !mfa.Check(*mfaKey, code, now) {
			return user, apperr.WrongMFACode
		}
	} else if !mfa.Check(*user.MFAKey, code, now) {
		return user, apperr.WrongMFACode
	}

	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.SetUserMFA(ctx, user.ID, mfaKey)
	})
	if err != nil {
		return user, err
	}
	user.MFAKey = mfaKey
	return user, nil
}

// ProfileUpdate lists the profile fields to change; nil fields are kept.
// Password is the current password, required when changing the email,
// the phone number or the password.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	Email       *string
	PhoneNumber *int64
	NewPassword *string
	Password    string
}

func (p ProfileUpdate) sensitive() bool {
	return p.Email != nil || p.PhoneNumber != nil || p.NewPassword != nil
}

// UpdateProfile edits the caller's names, email, phone number and
// password.
func (s *Service) UpdateProfile(ctx context.Context, user model.User, p ProfileUpdate) (model.User, error) {
	if p.sensitive() {
		if p.Password == "" {
			return user, apperr.NeedPassword
		}
		if !utils.VerifyPassword(user.PasswordHash, p.Password) {
			return user, apperr.WrongPassword
		}
	}
	if p.NewPassword != nil {
		hash, err := utils.HashPassword(*p.NewPassword, s.cfg.BcryptCost)
		if err != nil {
			return user, err
		}
		user.PasswordHash = &hash
	}
	if p.FirstName != nil {
		user.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		user.LastName = *p.LastName
	}
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		user.Email = &e
	}
	if p.PhoneNumber != nil {
		user.PhoneNumber = p.PhoneNumber
	}

	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		if p.PhoneNumber != nil {
			used, err := tx.PhoneNumberUsed(ctx, *p.PhoneNumber, user.ID)
			if err != nil {
				return err
			}
			if used {
				return apperr.PhoneNumberUsed
			}
		}
		if p.Email != nil {
			other, err := tx.GetUserByEmail(ctx, *user.Email)
			if err == nil && other.ID != user.ID {
				return apperr.UserExists
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
		err := tx.UpdateUser(ctx, user)
		switch {
		case errors.Is(err, repository.ErrPhoneExists):
			return apperr.PhoneNumberUsed
		case errors.Is(err, repository.ErrEmailExists):
			return apperr.UserExists
		}
		return err
	})
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}
