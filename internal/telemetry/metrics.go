package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/ltiernan/tracescope"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Credential metrics
	KeysIssuedTotal     metric.Int64Counter
	KeysRevokedTotal    metric.Int64Counter
	KeyVerifyTotal      metric.Int64Counter
	KeyVerifyFailures   metric.Int64Counter
	KeyVerifyDuration   metric.Float64Histogram

	// Access control metrics
	AuthzDenialsTotal metric.Int64Counter

	// Session metrics
	LoginsTotal         metric.Int64Counter
	LoginFailuresTotal  metric.Int64Counter
	ActiveSessionSweeps metric.Int64Counter
	SessionsSweptTotal  metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Credential metrics
	m.KeysIssuedTotal, _ = meter.Int64Counter(
		"tracescope.keys.issued.total",
		metric.WithDescription("Total number of API keys issued"),
		metric.WithUnit("{key}"),
	)

	m.KeysRevokedTotal, _ = meter.Int64Counter(
		"tracescope.keys.revoked.total",
		metric.WithDescription("Total number of API keys revoked"),
		metric.WithUnit("{key}"),
	)

	m.KeyVerifyTotal, _ = meter.Int64Counter(
		"tracescope.keys.verify.total",
		metric.WithDescription("Total number of API key verification attempts"),
		metric.WithUnit("{attempt}"),
	)

	m.KeyVerifyFailures, _ = meter.Int64Counter(
		"tracescope.keys.verify.failures.total",
		metric.WithDescription("Total number of rejected API key verifications"),
		metric.WithUnit("{attempt}"),
	)

	m.KeyVerifyDuration, _ = meter.Float64Histogram(
		"tracescope.keys.verify.duration",
		metric.WithDescription("Duration of API key verification"),
		metric.WithUnit("ms"),
	)

	// Access control metrics
	m.AuthzDenialsTotal, _ = meter.Int64Counter(
		"tracescope.authz.denials.total",
		metric.WithDescription("Total number of scope checks that denied access"),
		metric.WithUnit("{denial}"),
	)

	// Session metrics
	m.LoginsTotal, _ = meter.Int64Counter(
		"tracescope.sessions.logins.total",
		metric.WithDescription("Total number of successful logins"),
		metric.WithUnit("{login}"),
	)

	m.LoginFailuresTotal, _ = meter.Int64Counter(
		"tracescope.sessions.login_failures.total",
		metric.WithDescription("Total number of failed login attempts"),
		metric.WithUnit("{attempt}"),
	)

	m.ActiveSessionSweeps, _ = meter.Int64Counter(
		"tracescope.sessions.sweeps.total",
		metric.WithDescription("Total number of expired-session sweep runs"),
		metric.WithUnit("{sweep}"),
	)

	m.SessionsSweptTotal, _ = meter.Int64Counter(
		"tracescope.sessions.swept.total",
		metric.WithDescription("Total number of expired sessions removed by sweeps"),
		metric.WithUnit("{session}"),
	)

	return m
}
