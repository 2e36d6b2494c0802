// Command oauth-init runs the browser consent flow once and prints an access
// token with the Drive file scope, for use as CLOUD_ACCESS_TOKEN when the
// vault syncs through Google Drive.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"vault/internal/cli"
	vlog "vault/internal/log"
)

const consentTimeout = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := vlog.Setup(envOr("LOG_LEVEL", "info"), vlog.FormatText, vlog.ComponentSync)

	// Load client credentials
	var b []byte
	var err error
	switch clientJSON, clientFile := os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"), os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"); {
	case clientJSON != "":
		b = []byte(clientJSON)
	case clientFile != "":
		b, err = os.ReadFile(clientFile)
		if err != nil {
			cli.Fatal(logger, "Failed to read client file", vlog.FieldError, err, "path", clientFile)
		}
	default:
		cli.Fatal(logger, "Set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}

	// drive.file only grants access to files this app created, which is the
	// single snapshot file.
	cfg, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		cli.Fatal(logger, "Invalid OAuth client configuration", vlog.FieldError, err)
	}

	// The OAuth client must list this URI among its authorized redirect URIs.
	redirectPort := envOr("OAUTH_REDIRECT_PORT", "8085")
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	ctx, stop := cli.SignalContext()
	defer stop()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: "localhost:" + redirectPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			errCh <- fmt.Errorf("consent refused: %s", errStr)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- r.URL.Query().Get("code"):
		default:
		}
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL("vault-oauth-init", oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		cli.Fatal(logger, "Authorization failed", vlog.FieldError, err)
	case <-time.After(consentTimeout):
		cli.Fatal(logger, "Authorization timed out", "timeout", consentTimeout)
	case <-ctx.Done():
		cli.Fatal(logger, "Interrupted")
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		cli.Fatal(logger, "Token exchange failed", vlog.FieldError, err)
	}

	outFile := envOr("GOOGLE_OAUTH_TOKEN_FILE", "token.json")
	if err := writeToken(outFile, tok); err != nil {
		cli.Fatal(logger, "Failed to save token", vlog.FieldError, err, "path", outFile)
	}
	logger.Info("Saved token", "path", outFile, "expiry", tok.Expiry)
	fmt.Printf("CLOUD_ACCESS_TOKEN=%s\n", tok.AccessToken)
}

func writeToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
