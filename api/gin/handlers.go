package authgin

import (
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pilab-dev/shadow-auth/internal/federation"
	"github.com/pilab-dev/shadow-auth/services"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var loginTemplate = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// LoginService is the behaviour the HTTP layer needs from the login flows.
type LoginService interface {
	RenderLoginSurface() services.LoginSurface
	Login(ctx context.Context, attempt services.LoginAttempt) (*services.AuthOutcome, error)
	Checkpoint(ctx context.Context, token, code string, meta services.ClientMeta) (*services.AuthOutcome, error)
	RedirectToProvider(kind federation.ProviderKind, state string) (string, error)
	HandleCallback(ctx context.Context, kind federation.ProviderKind, code string, meta services.ClientMeta) (*services.AuthOutcome, error)
}

// Options configures cookies and redirects.
type Options struct {
	SessionCookie string
	// SecureCookies forces the Secure flag; otherwise it follows the request's TLS state.
	SecureCookies bool
	IntendedURL   string
}

// LoginAPI provides the login HTTP handlers.
type LoginAPI struct {
	service LoginService
	opts    Options
}

func NewLoginAPI(service LoginService, opts Options) *LoginAPI {
	if opts.SessionCookie == "" {
		opts.SessionCookie = "panel_session"
	}
	if opts.IntendedURL == "" {
		opts.IntendedURL = "/"
	}
	return &LoginAPI{service: service, opts: opts}
}

type loginRequest struct {
	User     string `json:"user" form:"user" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type checkpointRequest struct {
	ConfirmationToken  string `json:"confirmation_token" form:"confirmation_token" binding:"required"`
	AuthenticationCode string `json:"authentication_code" form:"authentication_code" binding:"required"`
}

// RegisterRoutes registers the login routes and the login page template.
func (a *LoginAPI) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(loginTemplate)

	auth := router.Group("/auth/login", SecurityHeadersMiddleware(), NoStore())
	{
		auth.GET("", a.ShowLoginHandler)
		auth.POST("", a.LoginHandler)
		auth.POST("/checkpoint", a.CheckpointHandler)
		auth.GET("/:provider", a.RedirectHandler)
		auth.GET("/:provider/callback", a.CallbackHandler)
		auth.POST("/:provider/callback", a.CallbackHandler)
	}
}

// ShowLoginHandler renders the login shell.
func (a *LoginAPI) ShowLoginHandler(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html.tmpl", a.service.RenderLoginSurface())
}

// LoginHandler handles username or email plus password.
func (a *LoginAPI) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "ValidationException", MsgValidation)
		return
	}

	out, err := a.service.Login(c.Request.Context(), services.LoginAttempt{
		Identifier: req.User,
		Password:   req.Password,
		ClientIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.writeOutcome(c, out)
}

// CheckpointHandler redeems a confirmation token with a TOTP code.
func (a *LoginAPI) CheckpointHandler(c *gin.Context) {
	var req checkpointRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "ValidationException", MsgValidation)
		return
	}

	out, err := a.service.Checkpoint(c.Request.Context(), req.ConfirmationToken, req.AuthenticationCode, a.meta(c))
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.writeOutcome(c, out)
}

// RedirectHandler sends the browser to the provider's authorization page.
func (a *LoginAPI) RedirectHandler(c *gin.Context) {
	kind, err := federation.ParseProviderKind(c.Param("provider"))
	if err != nil {
		a.writeError(c, err)
		return
	}

	state, err := newState()
	if err != nil {
		a.writeError(c, err)
		return
	}

	url, err := a.service.RedirectToProvider(kind, state)
	if err != nil {
		a.writeError(c, err)
		return
	}

	a.setStateCookie(c, state)
	c.Redirect(http.StatusFound, url)
}

// CallbackHandler completes an OAuth login. Some providers POST the callback.
func (a *LoginAPI) CallbackHandler(c *gin.Context) {
	kind, err := federation.ParseProviderKind(c.Param("provider"))
	if err != nil {
		a.writeError(c, err)
		return
	}

	if oauthErr := callbackParam(c, "error"); oauthErr != "" {
		log.Ctx(c.Request.Context()).Warn().
			Str("provider", kind.String()).
			Str("error", oauthErr).
			Str("desc", callbackParam(c, "error_description")).
			Msg("OAuth error in callback from provider")
		a.consumeState(c, "")
		a.writeFailed(c)
		return
	}

	if !a.consumeState(c, callbackParam(c, "state")) {
		log.Ctx(c.Request.Context()).Warn().Str("provider", kind.String()).Msg("State missing or mismatched in callback")
		a.writeFailed(c)
		return
	}

	code := callbackParam(c, "code")
	if code == "" {
		a.writeFailed(c)
		return
	}

	out, err := a.service.HandleCallback(c.Request.Context(), kind, code, a.meta(c))
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.writeOutcome(c, out)
}

func callbackParam(c *gin.Context, key string) string {
	if c.Request.Method == http.MethodPost {
		if v := c.PostForm(key); v != "" {
			return v
		}
	}
	return c.Query(key)
}

func (a *LoginAPI) meta(c *gin.Context) services.ClientMeta {
	return services.ClientMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (a *LoginAPI) secure(c *gin.Context) bool {
	return a.opts.SecureCookies || c.Request.TLS != nil
}
