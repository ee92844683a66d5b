package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeGoogle(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"g-42","email":"ada@example.com","given_name":"Ada","family_name":"Lovelace"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleAuthURL(t *testing.T) {
	g := NewGoogle(GoogleConfig{ClientID: "cid", RedirectURL: "https://app/cb"})

	u, err := url.Parse(g.AuthURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "https://app/cb", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "profile email", q.Get("scope"))
}

func TestGoogleExchange(t *testing.T) {
	srv := newFakeGoogle(t)
	g := NewGoogle(GoogleConfig{
		ClientID: "cid", ClientSecret: "sec",
		TokenURL: srv.URL + "/token", UserInfoURL: srv.URL + "/userinfo",
	})

	p, tok, err := g.Exchange(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, GoogleProfile{ID: "g-42", Email: "ada@example.com", GivenName: "Ada", FamilyName: "Lovelace"}, p)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)

	_, _, err = g.Exchange(context.Background(), "bad")
	assert.Error(t, err)
}
