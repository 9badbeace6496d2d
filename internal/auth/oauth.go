package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// googleUserInfoURL is Google's OpenID userinfo endpoint. The access token
// obtained from the code exchange is good for exactly this call.
const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUser is the slice of Google's userinfo response the resolver needs.
// Google returns more fields; we only decode what we store.
type GoogleUser struct {
	ID    string `json:"id"`    // Google's account id — stable, never reused
	Email string `json:"email"` // may be empty if the scope was not granted
	Name  string `json:"name"`  // display name, used as the initial username
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google authorization-code
// flow.
//
// The flow is the standard three-legged dance: redirect the browser to
// Google's consent page, receive a short-lived code on the callback URL,
// exchange the code server-to-server for an access token, and use that token
// to fetch the user's profile. The client secret and the access token never
// reach the browser.
type GoogleProvider struct {
	config *oauth2.Config
}

// NewGoogleProvider creates a GoogleProvider. callbackURL must exactly match
// an authorized redirect URI registered in the Google Cloud console.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// AuthURL returns the consent-page URL to redirect the user to. The state
// value is echoed back on the callback and must be verified against the
// state cookie to rule out CSRF-initiated flows.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow: trades the authorization code for an access
// token, then fetches the user's Google profile with it. This is one
// synchronous resolution step — the callback handler gets either a profile
// or an error, nothing in between.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that attaches the bearer
	// token to every request.
	client := p.config.Client(ctx, token)

	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo API returned status %d", resp.StatusCode)
	}

	var gu GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}

	if gu.ID == "" {
		return nil, fmt.Errorf("auth: Google returned a profile without an id")
	}

	return &gu, nil
}
