package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/claims"
	"github.com/ArRuslan/ticketer/internal/gateway"
	"github.com/ArRuslan/ticketer/internal/model"
	"github.com/ArRuslan/ticketer/internal/repository"
)

const googleService = "google"

// ErrGoogleDisabled is returned when Google sign-in is not configured.
var ErrGoogleDisabled = errors.New("google sign-in is not configured")

// GoogleLoginURL returns the consent URL for signing in with Google.
func (s *Service) GoogleLoginURL() (string, error) {
	if s.google == nil {
		return "", ErrGoogleDisabled
	}
	return s.google.AuthURL(""), nil
}

// GoogleConnectURL returns the consent URL for linking a Google account to
// user.  The state parameter is a short-lived link-state claim.
func (s *Service) GoogleConnectURL(ctx context.Context, user model.User) (string, error) {
	if s.google == nil {
		return "", ErrGoogleDisabled
	}
	var linked bool
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		linked, err = tx.HasExternalAuth(ctx, user.ID)
		return err
	})
	if err != nil {
		return "", err
	}
	if linked {
		return "", apperr.GoogleAlreadyConnected
	}
	state, err := s.codec.EncodeLinkState(claims.LinkStateClaim{UserID: user.ID})
	if err != nil {
		return "", err
	}
	return s.google.AuthURL(state), nil
}

// CallbackResult is the outcome of a Google callback.  Session is nil when
// the callback linked an account instead of signing in.
type CallbackResult struct {
	Session   *Session
	Connected bool
}

// GoogleCallback completes the authorization-code flow.  With a valid
// link state it links the Google account to the state's user; without one
// it signs in the linked user, registering a new account on first use.
func (s *Service) GoogleCallback(ctx context.Context, code, state string) (CallbackResult, error) {
	if s.google == nil {
		return CallbackResult{}, ErrGoogleDisabled
	}
	link, linking := s.codec.DecodeLinkState(state)
	profile, tok, err := s.google.Exchange(ctx, code)
	if err != nil {
		return CallbackResult{}, apperr.ExternalAuthFailed
	}
	ext := externalAuth(profile, tok, s.now())

	var out CallbackResult
	err = s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		existing, err := tx.GetExternalAuth(ctx, googleService, profile.ID)
		found := err == nil
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if found {
			ext.UserID = existing.UserID
			if err := tx.SaveExternalAuth(ctx, &ext); err != nil {
				return err
			}
		}

		var userID uint64
		switch {
		case linking && found:
			return apperr.GoogleAlreadyConnectedToOther
		case linking:
			has, err := tx.HasExternalAuth(ctx, link.UserID)
			if err != nil {
				return err
			}
			if has {
				return apperr.GoogleAlreadyConnected
			}
			if _, err := tx.GetUser(ctx, link.UserID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperr.UnknownUser
				}
				return err
			}
			ext.UserID = link.UserID
			if err := tx.SaveExternalAuth(ctx, &ext); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return apperr.GoogleAlreadyConnected
				}
				return err
			}
			out.Connected = true
			return nil
		case found:
			userID = existing.UserID
		default:
			u := &model.User{FirstName: profile.GivenName, LastName: profile.FamilyName}
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			ext.UserID = u.ID
			if err := tx.SaveExternalAuth(ctx, &ext); err != nil {
				return err
			}
			userID = u.ID
		}

		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u.Banned {
			return apperr.UserBanned
		}
		sess, err := s.newSession(ctx, tx, userID)
		if err != nil {
			return err
		}
		out.Session = &sess
		return nil
	})
	return out, err
}

func externalAuth(p gateway.GoogleProfile, tok *oauth2.Token, now time.Time) model.ExternalAuth {
	a := model.ExternalAuth{Service: googleService, ServiceID: p.ID, ExpiresAt: now}
	if tok != nil {
		a.AccessToken = tok.AccessToken
		a.RefreshToken = tok.RefreshToken
		if !tok.Expiry.IsZero() {
			a.ExpiresAt = tok.Expiry.UTC()
		}
	}
	return a
}
