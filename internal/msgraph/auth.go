package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/christopherklint97/shiftcal/internal/calendar"
)

const (
	calendarScope   = "Calendars.ReadWrite offline_access"
	deviceCodeGrant = "urn:ietf:params:oauth:grant-type:device_code"
)

// Auth signs in to Microsoft with the device code flow and keeps the
// resulting tokens fresh on disk.
type Auth struct {
	clientID   string
	authority  string
	tokenPath  string
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

// NewAuth creates an Auth for the given app registration. An empty tenantID
// signs in against the multi-tenant "common" endpoint.
func NewAuth(clientID, tenantID, tokenPath string, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if tenantID == "" {
		tenantID = "common"
	}
	return &Auth{
		clientID:   clientID,
		authority:  "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0",
		tokenPath:  tokenPath,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// oauthReply covers both the device code and token endpoint bodies.
type oauthReply struct {
	DeviceCode   string `json:"device_code"`
	Message      string `json:"message"`
	Interval     int    `json:"interval"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (r *oauthReply) tokens() *TokenData {
	return &TokenData{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(r.ExpiresIn) * time.Second),
		Scope:        r.Scope,
	}
}

// post sends form to the authority endpoint and decodes the reply. OAuth
// errors come back in the body, so non-2xx replies with an error field are
// not treated as transport failures.
func (a *Auth) post(ctx context.Context, endpoint string, form url.Values) (*oauthReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authority+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	var reply oauthReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("parsing %s response (status %d): %w", endpoint, resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 && reply.Error == "" {
		return nil, fmt.Errorf("%s failed with status %d", endpoint, resp.StatusCode)
	}
	return &reply, nil
}

// Login prints the device code instructions to out, waits for the user to
// approve the sign-in and caches the tokens.
func (a *Auth) Login(ctx context.Context, out io.Writer) error {
	if a.clientID == "" {
		return fmt.Errorf("graph client_id is not configured")
	}
	dc, err := a.post(ctx, "/devicecode", url.Values{
		"client_id": {a.clientID},
		"scope":     {calendarScope},
	})
	if err != nil {
		return err
	}
	if dc.Error != "" {
		return fmt.Errorf("starting sign-in: %s: %s", dc.Error, dc.ErrorDesc)
	}
	fmt.Fprintln(out, dc.Message)

	if dc.ExpiresIn > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(dc.ExpiresIn)*time.Second)
		defer cancel()
	}
	interval := time.Duration(max(dc.Interval, 1)) * time.Second
	form := url.Values{
		"client_id":   {a.clientID},
		"grant_type":  {deviceCodeGrant},
		"device_code": {dc.DeviceCode},
	}

	for {
		if err := a.sleep(ctx, interval); err != nil {
			return fmt.Errorf("waiting for sign-in: %w", err)
		}
		reply, err := a.post(ctx, "/token", form)
		if err != nil {
			return err
		}
		switch reply.Error {
		case "":
			return SaveTokens(a.tokenPath, reply.tokens())
		case "authorization_pending":
			a.logger.Debug("waiting for sign-in approval")
		case "slow_down":
			interval += 5 * time.Second
		case "expired_token":
			return fmt.Errorf("the sign-in code expired, run 'shiftcal auth' again")
		case "authorization_declined":
			return fmt.Errorf("%w: sign-in was declined", calendar.ErrNotSignedIn)
		default:
			return fmt.Errorf("sign-in failed: %s: %s", reply.Error, reply.ErrorDesc)
		}
	}
}

// Logout removes cached tokens.
func (a *Auth) Logout() error {
	return RemoveTokens(a.tokenPath)
}

// AccessToken returns a bearer token for Graph, refreshing and re-caching it
// when it is about to expire.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	cached, err := LoadTokens(a.tokenPath)
	if err != nil {
		return "", fmt.Errorf("loading cached tokens: %w", err)
	}
	if cached == nil {
		return "", fmt.Errorf("%w: run 'shiftcal auth' first", calendar.ErrNotSignedIn)
	}
	if !cached.IsExpired() {
		return cached.AccessToken, nil
	}

	a.logger.Debug("graph token expired, refreshing")
	reply, err := a.post(ctx, "/token", url.Values{
		"client_id":     {a.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {cached.RefreshToken},
		"scope":         {calendarScope},
	})
	if err != nil {
		return "", err
	}
	if reply.Error != "" {
		return "", fmt.Errorf("%w: token refresh failed: %s", calendar.ErrNotSignedIn, reply.Error)
	}

	fresh := reply.tokens()
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cached.RefreshToken
	}
	if err := SaveTokens(a.tokenPath, fresh); err != nil {
		a.logger.Warn("failed to cache refreshed graph token", "error", err)
	}
	return fresh.AccessToken, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
