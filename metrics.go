package authcore

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID uint8

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginChallenge
	MetricSecondFactorSuccess
	MetricSecondFactorFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricValidateSuccess
	MetricValidateFailure
	MetricSessionCreated
	MetricSessionRevoked
	MetricLogout
	MetricBackupCodeUsed
	MetricAlertEmitted

	metricCount
)

var metricNames = [metricCount]string{
	MetricLoginSuccess:        "authcore_login_success_total",
	MetricLoginFailure:        "authcore_login_failure_total",
	MetricLoginChallenge:      "authcore_login_second_factor_challenge_total",
	MetricSecondFactorSuccess: "authcore_second_factor_success_total",
	MetricSecondFactorFailure: "authcore_second_factor_failure_total",
	MetricRefreshSuccess:      "authcore_refresh_success_total",
	MetricRefreshFailure:      "authcore_refresh_failure_total",
	MetricValidateSuccess:     "authcore_validate_success_total",
	MetricValidateFailure:     "authcore_validate_failure_total",
	MetricSessionCreated:      "authcore_sessions_created_total",
	MetricSessionRevoked:      "authcore_sessions_revoked_total",
	MetricLogout:              "authcore_logout_total",
	MetricBackupCodeUsed:      "authcore_backup_code_used_total",
	MetricAlertEmitted:        "authcore_alerts_emitted_total",
}

// Name returns the Prometheus-style counter name.
func (id MetricID) Name() string {
	if id >= metricCount {
		return "authcore_unknown"
	}
	return metricNames[id]
}

// Metrics is a fixed set of lock-free counters.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot returns a point-in-time copy of every counter keyed by name.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, metricCount)
	for id := MetricID(0); id < metricCount; id++ {
		out[id.Name()] = m.counters[id].Load()
	}
	return out
}
