package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/pilab-dev/shadow-auth/internal/audit"
	"github.com/pilab-dev/shadow-auth/internal/federation"
	"github.com/pilab-dev/shadow-auth/internal/metrics"
	"github.com/pilab-dev/shadow-auth/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const orchestratorService = "LoginOrchestrator"

// LoginSurface is what the login page needs to render.
type LoginSurface struct {
	AppName   string
	Providers []federation.ProviderKind
}

// LoginOrchestrator ties the password, checkpoint and OAuth paths together.
type LoginOrchestrator struct {
	appName     string
	credentials *CredentialAuthenticator
	checkpoint  *SecondFactorChallenge
	providers   ProviderRegistry
	resolver    AccountResolver
	sessions    SessionEstablisher
}

func NewLoginOrchestrator(
	appName string,
	credentials *CredentialAuthenticator,
	checkpoint *SecondFactorChallenge,
	providers ProviderRegistry,
	resolver AccountResolver,
	sessions SessionEstablisher,
) *LoginOrchestrator {
	return &LoginOrchestrator{
		appName:     appName,
		credentials: credentials,
		checkpoint:  checkpoint,
		providers:   providers,
		resolver:    resolver,
		sessions:    sessions,
	}
}

func (o *LoginOrchestrator) RenderLoginSurface() LoginSurface {
	return LoginSurface{AppName: o.appName, Providers: o.providers.Kinds()}
}

func (o *LoginOrchestrator) Login(ctx context.Context, attempt LoginAttempt) (*AuthOutcome, error) {
	return o.credentials.Authenticate(ctx, attempt)
}

func (o *LoginOrchestrator) Checkpoint(ctx context.Context, token, code string, meta ClientMeta) (*AuthOutcome, error) {
	return o.checkpoint.Redeem(ctx, token, code, meta)
}

// RedirectToProvider returns the authorization URL for kind.
func (o *LoginOrchestrator) RedirectToProvider(kind federation.ProviderKind, state string) (string, error) {
	p, err := o.providers.Get(kind)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// HandleCallback finishes an OAuth login. A code the provider refuses yields
// a Failed outcome; an unreachable provider and storage faults are errors.
func (o *LoginOrchestrator) HandleCallback(ctx context.Context, kind federation.ProviderKind, code string, meta ClientMeta) (_ *AuthOutcome, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "LoginOrchestrator.HandleCallback",
		trace.WithAttributes(attribute.String("auth.provider", kind.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p, err := o.providers.Get(kind)
	if err != nil {
		return nil, err
	}

	token, err := p.Exchange(ctx, code)
	if err != nil && !errors.Is(err, federation.ErrExchangeCodeFailed) {
		metrics.LoginFailureTotal.WithLabelValues(metrics.MethodOAuth).Inc()
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("provider", kind.String()).Msg("OAuth: code exchange failed")
		audit.Log(orchestratorService, audit.ActionLoginFailure, "", kind.String(), "code exchange failed", false, err)
		metrics.LoginFailureTotal.WithLabelValues(metrics.MethodOAuth).Inc()
		return Failed(), nil
	}

	identity, err := p.FetchRawIdentity(ctx, token.AccessToken)
	if err != nil {
		metrics.LoginFailureTotal.WithLabelValues(metrics.MethodOAuth).Inc()
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	user, err := o.resolver.Resolve(ctx, kind, identity)
	if err != nil {
		metrics.LoginFailureTotal.WithLabelValues(metrics.MethodOAuth).Inc()
		return nil, err
	}

	session, err := o.sessions.Establish(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	audit.Log(orchestratorService, audit.ActionLoginSuccess, user.ID, meta.IP, kind.String(), true, nil)
	metrics.LoginSuccessTotal.WithLabelValues(metrics.MethodOAuth).Inc()
	return Success(user, session), nil
}

// IsProviderFault reports whether err came from talking to the identity provider.
func IsProviderFault(err error) bool {
	return errors.Is(err, federation.ErrProviderUnreachable) || errors.Is(err, federation.ErrMalformedProviderResponse)
}
