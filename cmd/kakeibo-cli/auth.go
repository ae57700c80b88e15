package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// authorizedUser is the credentials file layout Google client libraries
// accept for a user refresh token.
type authorizedUser struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

func newAuthorizedUser(cfg *oauth2.Config, tok *oauth2.Token) (authorizedUser, error) {
	if tok.RefreshToken == "" {
		return authorizedUser{}, errors.New("no refresh token returned; revoke the app's access and retry")
	}
	return authorizedUser{
		Type:         "authorized_user",
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: tok.RefreshToken,
	}, nil
}

func authCmd(d *Deps) *cobra.Command {
	var clientFile, outFile, port string
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize a Google account and write a credentials file",
		Long: `Run the OAuth consent flow for an installed-app client and save the
result as an authorized_user credentials file. Point GOOGLE_CREDENTIALS_FILE
at it, or copy its contents into the variable named by
GOOGLE_CREDENTIALS_SECRET.

The OAuth client must list http://localhost:<port>/callback as a redirect URI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientJSON, err := readClientJSON(clientFile)
			if err != nil {
				return err
			}
			cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
			if err != nil {
				return fmt.Errorf("oauth client config: %w", err)
			}
			cfg.RedirectURL = "http://localhost:" + port + "/callback"

			tok, err := authorize(cmd.Context(), d, cfg, port)
			if err != nil {
				return err
			}
			creds, err := newAuthorizedUser(cfg, tok)
			if err != nil {
				return err
			}
			if err := writeCredentials(outFile, creds); err != nil {
				return err
			}
			fmt.Fprintf(d.Stdout, "%s %s\n", successStyle.Render("Saved credentials to"), outFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientFile, "client-file", os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"), "OAuth client JSON file (or set GOOGLE_OAUTH_CLIENT_JSON)")
	cmd.Flags().StringVarP(&outFile, "out", "o", envOr("GOOGLE_CREDENTIALS_FILE", "secrets.json"), "where to write the credentials")
	cmd.Flags().StringVar(&port, "port", envOr("OAUTH_REDIRECT_PORT", "8085"), "local port for the OAuth redirect")
	return cmd
}

func readClientJSON(path string) ([]byte, error) {
	if v := os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"); v != "" {
		return []byte(v), nil
	}
	if path == "" {
		return nil, errors.New("set --client-file, GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client file: %w", err)
	}
	return b, nil
}

// authorize serves the redirect on port and exchanges the returned code.
func authorize(ctx context.Context, d *Deps, cfg *oauth2.Config, port string) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}
	codes := make(chan string, 1)
	errs := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(state, codes, errs))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	ln, err := net.Listen("tcp", "localhost:"+port)
	if err != nil {
		return nil, fmt.Errorf("listen for OAuth redirect: %w", err)
	}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Fprintf(d.Stdout, "Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case code := <-codes:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case err := <-errs:
		return nil, err
	case <-time.After(5 * time.Minute):
		return nil, errors.New("authorization timed out")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// callbackHandler accepts one redirect carrying the expected state.
func callbackHandler(state string, codes chan<- string, errs chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
			trySend(errs, fmt.Errorf("authorization denied: %s", e))
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		trySend(codes, code)
	})
}

func trySend[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func writeCredentials(path string, creds authorizedUser) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open credentials file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(creds); err != nil {
		f.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	return f.Close()
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
