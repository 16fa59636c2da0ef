package authgin

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pilab-dev/shadow-auth/domain"
	"github.com/pilab-dev/shadow-auth/internal/federation"
	"github.com/pilab-dev/shadow-auth/services"
	"github.com/rs/zerolog/log"
)

// Displayable messages. The failure message is the same for every
// credential problem.
const (
	MsgFailed            = "These credentials do not match our records."
	MsgCheckpointExpired = "The authentication token provided has expired, please refresh the page and try again."
	MsgProviderFault     = "The identity provider could not be reached or returned an invalid response. Please try again later."
	MsgIdentityConflict  = "An account with this username or email address already exists."
	MsgProviderNotFound  = "This login provider is not available."
	MsgServerError       = "An unexpected error was encountered while processing this request, please try again."
	MsgValidation        = "The given data was invalid."
)

// APIError is one entry of the "errors" response array.
type APIError struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

type errorResponse struct {
	Errors []APIError `json:"errors"`
}

type successData struct {
	Complete          bool         `json:"complete"`
	Intended          string       `json:"intended,omitempty"`
	User              *domain.User `json:"user,omitempty"`
	ConfirmationToken string       `json:"confirmation_token,omitempty"`
}

type dataResponse struct {
	Data successData `json:"data"`
}

func abortWithError(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, errorResponse{Errors: []APIError{{
		Code:   code,
		Status: strconv.Itoa(status),
		Detail: detail,
	}}})
}

func (a *LoginAPI) writeFailed(c *gin.Context) {
	abortWithError(c, http.StatusUnauthorized, "AuthenticationException", MsgFailed)
}

// writeOutcome maps an AuthOutcome onto the response body and cookies.
func (a *LoginAPI) writeOutcome(c *gin.Context, out *services.AuthOutcome) {
	switch out.Kind {
	case services.OutcomeSuccess:
		a.setSessionCookie(c, out.Session)
		c.JSON(http.StatusOK, dataResponse{Data: successData{
			Complete: true,
			Intended: a.opts.IntendedURL,
			User:     out.User,
		}})
	case services.OutcomeRequiresSecondFactor:
		c.JSON(http.StatusOK, dataResponse{Data: successData{
			Complete:          false,
			ConfirmationToken: out.ConfirmationToken,
		}})
	case services.OutcomeLocked:
		seconds := int(math.Ceil(out.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		abortWithError(c, http.StatusTooManyRequests, "TooManyRequestsHttpException",
			fmt.Sprintf("Too many login attempts. Please try again in %d seconds.", seconds))
	default:
		a.writeFailed(c)
	}
}

// writeError maps service errors. Raw error text never reaches the client.
func (a *LoginAPI) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, services.ErrChallengeExpired), errors.Is(err, services.ErrChallengeUnknown):
		abortWithError(c, http.StatusUnauthorized, "AuthenticationException", MsgCheckpointExpired)
	case errors.Is(err, services.ErrAuthenticationFailed):
		a.writeFailed(c)
	case services.IsProviderFault(err):
		abortWithError(c, http.StatusBadGateway, "ProviderException", MsgProviderFault)
	case errors.Is(err, services.ErrIdentityCreationFailed):
		abortWithError(c, http.StatusConflict, "DisplayException", MsgIdentityConflict)
	case errors.Is(err, federation.ErrProviderNotFound), errors.Is(err, federation.ErrUnknownKind):
		abortWithError(c, http.StatusNotFound, "NotFoundHttpException", MsgProviderNotFound)
	default:
		log.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.Request.URL.Path).Msg("auth request failed")
		abortWithError(c, http.StatusInternalServerError, "InternalServerError", MsgServerError)
	}
}

func (a *LoginAPI) setSessionCookie(c *gin.Context, session *domain.Session) {
	if session == nil {
		return
	}
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge <= 0 {
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     a.opts.SessionCookie,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   a.secure(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
