package authsdk

import (
	"net/url"
)

// OAuthRedirectURL builds the URL that starts an OAuth sign-in with provider.
// Pure construction; redirectURI is fully percent-encoded.
func (c *Client) OAuthRedirectURL(provider, redirectURI string) string {
	q := url.Values{}
	q.Set("redirect_uri", redirectURI)
	return c.BaseURL + "/api/auth/oauth/" + url.PathEscape(provider) + "?" + q.Encode()
}
