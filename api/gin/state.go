package authgin

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	stateCookieName = "auth_oauth_state"
	stateMaxAge     = 300
	statePath       = "/auth/login"
)

func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (a *LoginAPI) setStateCookie(c *gin.Context, state string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     statePath,
		MaxAge:   stateMaxAge,
		Secure:   a.secure(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// consumeState reads and clears the state cookie, then compares it with the
// state the provider echoed back.
func (a *LoginAPI) consumeState(c *gin.Context, returned string) bool {
	stored, err := c.Cookie(stateCookieName)
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     statePath,
		MaxAge:   -1,
		Secure:   a.secure(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if err != nil || stored == "" || returned == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(returned)) == 1
}
