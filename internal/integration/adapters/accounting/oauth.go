// Package accounting holds the adapters that push invoices into accounting
// packages.
package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"golang.org/x/oauth2"
)

// OAuthConfig is the authorization-code app registration for a provider.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	Scopes       []string
}

type oauthApp struct {
	config  oauth2.Config
	apiBase string
}

func newOAuthApp(cfg OAuthConfig) oauthApp {
	return oauthApp{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		apiBase: strings.TrimRight(cfg.APIBaseURL, "/"),
	}
}

func (a oauthApp) exchange(ctx context.Context, req domain.ConnectRequest) (*oauth2.Token, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, domain.ErrMissingCredential
	}
	var opts []oauth2.AuthCodeOption
	if req.RedirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", req.RedirectURI))
	}
	return a.config.Exchange(ctx, req.Code, opts...)
}

// client returns an HTTP client that refreshes the stored token on demand,
// plus the token source so the caller can persist a refreshed token.
func (a oauthApp) client(ctx context.Context, creds domain.Credentials) (*http.Client, oauth2.TokenSource, error) {
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, nil, domain.ErrMissingCredential
	}
	source := a.config.TokenSource(ctx, &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
		Expiry:       creds.Expiry,
	})
	return oauth2.NewClient(ctx, source), source, nil
}

func credentialsFromToken(tok *oauth2.Token, extra map[string]string) domain.Credentials {
	return domain.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Extra:        extra,
	}
}

// refreshed reports the token the source currently holds when it differs from
// what was stored.
func refreshed(source oauth2.TokenSource, stored domain.Credentials) *domain.Credentials {
	tok, err := source.Token()
	if err != nil || tok.AccessToken == stored.AccessToken {
		return nil
	}
	creds := credentialsFromToken(tok, stored.Extra)
	if creds.RefreshToken == "" {
		creds.RefreshToken = stored.RefreshToken
	}
	return &creds
}

func postJSON(ctx context.Context, client *http.Client, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderRejected, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
