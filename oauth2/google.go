package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleOAuth2 struct {
	*BaseOAuth2

	// Endpoint for fetching the user profile.  Overridable in tests.
	UserInfoURL string

	HandleUser HandleUserFunc
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}

	out := GoogleOAuth2{
		BaseOAuth2:  NewBaseOAuth2(clientId, clientSecret, callbackUrl),
		UserInfoURL: defaultGoogleUserInfoURL,
		HandleUser:  handleUser,
	}
	out.BaseOAuth2.oauthConfig.Endpoint = google.Endpoint
	out.BaseOAuth2.oauthConfig.Scopes = []string{
		"https://www.googleapis.com/auth/userinfo.profile",
	}
	return &out
}

// SetEndpoint overrides the provider's auth/token endpoints.  Used by tests
// to point the flow at a mock provider.
func (g *GoogleOAuth2) SetEndpoint(endpoint oauth2.Endpoint) {
	g.BaseOAuth2.oauthConfig.Endpoint = endpoint
}

// HandleCallback completes the three-legged flow: it verifies the state
// cookie, exchanges the code for a token, fetches the user profile and hands
// it to HandleUser. Any provider-side failure redirects to FailureURL.
func (g *GoogleOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, _ := r.Cookie("oauthstate")
	if oauthState == nil {
		log.Println("oauth state cookie is missing")
		http.Redirect(w, r, g.FailureURL, http.StatusFound)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		log.Println("invalid oauth google state")
		http.SetCookie(w, &http.Cookie{
			Name:   "oauthstate",
			Path:   "/",
			MaxAge: -1,
		})
		http.Redirect(w, r, g.FailureURL, http.StatusFound)
		return
	}

	code := r.FormValue("code")
	token, err := g.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		log.Println("code exchange wrong: ", err)
		http.Redirect(w, r, g.FailureURL, http.StatusFound)
		return
	}

	userInfo, err := g.fetchUserInfo(token)
	if err != nil {
		log.Println("error fetching google user info: ", err)
		http.Redirect(w, r, g.FailureURL, http.StatusFound)
		return
	}

	g.HandleUser("google", token, userInfo, w, r)
}

func (g *GoogleOAuth2) fetchUserInfo(token *oauth2.Token) (userInfo map[string]any, err error) {
	response, err := http.Get(g.UserInfoURL + "?access_token=" + token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %s", err.Error())
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request failed: %s", response.Status)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed read response: %s", err.Error())
	}
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed parsing user info: %s", err.Error())
	}
	return userInfo, nil
}

// Subject extracts the stable provider identity from a userinfo payload.
// Google's v2 endpoint reports it as "id", the OIDC endpoint as "sub".
func Subject(userInfo map[string]any) string {
	if id, ok := userInfo["id"].(string); ok && id != "" {
		return id
	}
	if sub, ok := userInfo["sub"].(string); ok && sub != "" {
		return sub
	}
	return ""
}

// DisplayName extracts a human readable name from a userinfo payload.
func DisplayName(userInfo map[string]any) string {
	if name, ok := userInfo["name"].(string); ok {
		return name
	}
	return ""
}
