package gcal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcalapi "google.golang.org/api/calendar/v3"

	"github.com/christopherklint97/shiftcal/internal/calendar"
)

// Auth runs the installed-app OAuth flow for Google Calendar and manages the
// cached token.
type Auth struct {
	config    *oauth2.Config
	tokenPath string
	logger    *slog.Logger
}

func NewAuth(clientID, clientSecret, tokenPath string, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Auth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcalapi.CalendarScope},
		},
		tokenPath: tokenPath,
		logger:    logger,
	}
}

// Login prints an authorization URL, waits for Google to redirect back to a
// loopback listener, and caches the resulting token.
func (a *Auth) Login(ctx context.Context, out io.Writer) error {
	if a.config.ClientID == "" {
		return fmt.Errorf("google client_id is not configured")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("starting callback listener: %w", err)
	}
	defer ln.Close()

	cfg := *a.config
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())

	verifier := oauth2.GenerateVerifier()
	state := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier))

	fmt.Fprintf(out, "Open this URL in your browser to grant calendar access:\n\n  %s\n\n", authURL)

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		var res result
		switch {
		case q.Get("state") != state:
			res.err = fmt.Errorf("oauth state mismatch")
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		default:
			res.code = q.Get("code")
		}
		select {
		case results <- res:
		default:
		}
		fmt.Fprintln(w, "shiftcal: you can close this window.")
	})}
	go srv.Serve(ln)
	defer srv.Close()

	var res result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return res.err
	}

	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	if err := SaveToken(a.tokenPath, tok); err != nil {
		return err
	}
	a.logger.Debug("google token cached", "path", a.tokenPath, "expiry", tok.Expiry)
	return nil
}

// Logout removes the cached token.
func (a *Auth) Logout() error {
	if err := os.Remove(a.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// TokenSource returns a refreshing token source over the cached token, or
// calendar.ErrNotSignedIn when there is none.
func (a *Auth) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := LoadToken(a.tokenPath)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: run 'shiftcal auth' first", calendar.ErrNotSignedIn)
	}
	src := &savingSource{
		base: a.config.TokenSource(ctx, tok),
		path: a.tokenPath,
		last: tok.AccessToken,
		onErr: func(err error) {
			a.logger.Warn("failed to cache refreshed token", "error", err)
		},
	}
	return oauth2.ReuseTokenSource(tok, src), nil
}
