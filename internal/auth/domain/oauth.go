package domain

// OAuthProvider is an external identity provider a user can be redirected to.
type OAuthProvider struct {
	Name         string
	AuthorizeURL string
	ClientID     string
	Scopes       []string
}
