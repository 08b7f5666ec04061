package service

import (
	"net/url"
	"strings"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/pkg/cryptox"
)

// Well-known provider endpoints. Only the client id is configured.
var knownProviders = map[string]domain.OAuthProvider{
	"github": {
		Name:         "github",
		AuthorizeURL: "https://github.com/login/oauth/authorize",
		Scopes:       []string{"read:user", "user:email"},
	},
	"google": {
		Name:         "google",
		AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		Scopes:       []string{"openid", "email", "profile"},
	},
	"microsoft": {
		Name:         "microsoft",
		AuthorizeURL: "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		Scopes:       []string{"openid", "email", "profile"},
	},
}

// OAuthProviders returns the providers that have a client id in clientIDs,
// keyed by lower-cased name. Unknown names are ignored.
func OAuthProviders(clientIDs map[string]string) map[string]domain.OAuthProvider {
	out := make(map[string]domain.OAuthProvider, len(clientIDs))
	for name, id := range clientIDs {
		name = strings.ToLower(name)
		p, ok := knownProviders[name]
		if !ok || id == "" {
			continue
		}
		p.ClientID = id
		out[name] = p
	}
	return out
}

// OAuthService builds provider authorize URLs. It never calls the network.
type OAuthService struct {
	Providers map[string]domain.OAuthProvider

	// AllowedRedirects, when non-empty, lists the prefixes a redirect_uri
	// must start with.
	AllowedRedirects []string
}

// RedirectURL returns the authorize URL for provider with every query value
// percent-encoded.
func (s *OAuthService) RedirectURL(provider, redirectURI string) (string, error) {
	p, ok := s.Providers[strings.ToLower(provider)]
	if !ok {
		return "", ErrUnsupportedOAuthProvider
	}
	if err := s.checkRedirect(redirectURI); err != nil {
		return "", err
	}

	base, err := url.Parse(p.AuthorizeURL)
	if err != nil {
		return "", err
	}
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}

	q := base.Query()
	q.Set("client_id", p.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	if len(p.Scopes) > 0 {
		q.Set("scope", strings.Join(p.Scopes, " "))
	}
	q.Set("state", state)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (s *OAuthService) checkRedirect(redirectURI string) error {
	u, err := url.Parse(redirectURI)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidRedirectURI
	}
	if len(s.AllowedRedirects) == 0 {
		return nil
	}
	for _, prefix := range s.AllowedRedirects {
		if strings.HasPrefix(redirectURI, prefix) {
			return nil
		}
	}
	return ErrInvalidRedirectURI
}
