package msgraph

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/shiftcal/internal/calendar"
)

const testAuthority = "https://login.microsoftonline.com/common/oauth2/v2.0"

func newMockedAuth(t *testing.T) (*Auth, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "msgraph_tokens.json")
	a := NewAuth("app", "", path, nil)
	a.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	httpmock.ActivateNonDefault(a.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return a, path
}

func TestLogin_PollsUntilApproved(t *testing.T) {
	a, path := newMockedAuth(t)
	httpmock.RegisterResponder(http.MethodPost, testAuthority+"/devicecode",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"device_code": "dev", "message": "Go to https://microsoft.com/devicelogin and enter ABC", "interval": 1, "expires_in": 900,
		}))
	polls := 0
	httpmock.RegisterResponder(http.MethodPost, testAuthority+"/token", func(req *http.Request) (*http.Response, error) {
		polls++
		require.NoError(t, req.ParseForm())
		assert.Equal(t, "dev", req.PostForm.Get("device_code"))
		if polls < 3 {
			return httpmock.NewJsonResponse(400, map[string]any{"error": "authorization_pending"})
		}
		return httpmock.NewJsonResponse(200, map[string]any{
			"access_token": "at", "refresh_token": "rt", "expires_in": 3600,
		})
	})

	var out bytes.Buffer
	require.NoError(t, a.Login(context.Background(), &out))

	assert.Contains(t, out.String(), "enter ABC")
	assert.Equal(t, 3, polls)
	tokens, err := LoadTokens(path)
	require.NoError(t, err)
	assert.Equal(t, "at", tokens.AccessToken)
	assert.Equal(t, "rt", tokens.RefreshToken)
}

func TestLogin_Declined(t *testing.T) {
	a, _ := newMockedAuth(t)
	httpmock.RegisterResponder(http.MethodPost, testAuthority+"/devicecode",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{"device_code": "dev", "message": "sign in"}))
	httpmock.RegisterResponder(http.MethodPost, testAuthority+"/token",
		httpmock.NewJsonResponderOrPanic(400, map[string]any{"error": "authorization_declined"}))

	err := a.Login(context.Background(), &bytes.Buffer{})
	assert.ErrorIs(t, err, calendar.ErrNotSignedIn)
}

func TestLogin_RequiresClientID(t *testing.T) {
	err := NewAuth("", "", filepath.Join(t.TempDir(), "t.json"), nil).Login(context.Background(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "client_id")
}

func TestAccessToken_RefreshesExpired(t *testing.T) {
	a, path := newMockedAuth(t)
	require.NoError(t, SaveTokens(path, &TokenData{AccessToken: "old", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Minute)}))
	httpmock.RegisterResponder(http.MethodPost, testAuthority+"/token", func(req *http.Request) (*http.Response, error) {
		require.NoError(t, req.ParseForm())
		assert.Equal(t, "refresh_token", req.PostForm.Get("grant_type"))
		assert.Equal(t, "rt", req.PostForm.Get("refresh_token"))
		return httpmock.NewJsonResponse(200, map[string]any{"access_token": "new", "expires_in": 3600})
	})

	tok, err := a.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", tok)

	cached, err := LoadTokens(path)
	require.NoError(t, err)
	assert.Equal(t, "rt", cached.RefreshToken)
	assert.False(t, cached.IsExpired())
}

func TestAccessToken_RefreshRejected(t *testing.T) {
	a, path := newMockedAuth(t)
	require.NoError(t, SaveTokens(path, &TokenData{AccessToken: "old", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Minute)}))
	httpmock.RegisterResponder(http.MethodPost, testAuthority+"/token",
		httpmock.NewJsonResponderOrPanic(400, map[string]any{"error": "invalid_grant"}))

	_, err := a.AccessToken(context.Background())
	assert.ErrorIs(t, err, calendar.ErrNotSignedIn)
}
