package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Counters are created eagerly so code paths can increment them before, or
// without, registration.
var (
	LoginSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_success_total",
		Help: "Total number of successful logins, by method.",
	}, []string{"method"})
	LoginFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_failure_total",
		Help: "Total number of failed logins, by method.",
	}, []string{"method"})
	LockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_lockouts_total",
		Help: "Total number of login attempts rejected by the lockout.",
	})
	SecondFactorChallengesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_second_factor_challenges_total",
		Help: "Total number of TOTP checkpoints issued.",
	})
	FederatedUsersCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_federated_users_created_total",
		Help: "Total number of users created from an external identity, by provider.",
	}, []string{"provider"})
)

// Login methods used as the "method" label.
const (
	MethodPassword   = "password"
	MethodCheckpoint = "checkpoint"
	MethodOAuth      = "oauth"
)

// InitCustomMetrics registers the custom collectors.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	collectors := map[string]prometheus.Collector{
		"LoginSuccessTotal":           LoginSuccessTotal,
		"LoginFailureTotal":           LoginFailureTotal,
		"LockoutsTotal":               LockoutsTotal,
		"SecondFactorChallengesTotal": SecondFactorChallengesTotal,
		"FederatedUsersCreatedTotal":  FederatedUsersCreatedTotal,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
