package oauth2

import (
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string

	// Where to send the user when the provider-side flow fails
	FailureURL string

	oauthConfig oauth2.Config
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string) *BaseOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_CALLBACK_URL")
	}
	return &BaseOAuth2{
		ClientId:     clientId,
		ClientSecret: clientSecret,
		CallbackURL:  callbackUrl,
		FailureURL:   "/login",
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
}

// HandleRedirect begins the three-legged flow: it sets the state cookie and
// redirects the browser to the provider's consent page.
func (b *BaseOAuth2) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	OauthRedirector(&b.oauthConfig)(w, r)
}
