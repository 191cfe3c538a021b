package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// NotifyDroppedName is the counter of emails dropped by a full queue.
const NotifyDroppedName = "authcore_notify_dropped_total"

// NotifyDroppedHelp describes NotifyDroppedName.
const NotifyDroppedHelp = "Verification and reset emails dropped due to queue backpressure."

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Rejected login attempts."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Login attempts refused by the brute-force tracker."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Created accounts."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected because the email exists."},
	{ID: authcore.MetricRegisterWeakPassword, Name: "authcore_register_weak_password_total", Help: "Registrations rejected by the password policy."},
	{ID: authcore.MetricUpstreamProviderFailure, Name: "authcore_upstream_provider_failure_total", Help: "Failed identity provider exchanges."},
	{ID: authcore.MetricPasswordRehashed, Name: "authcore_password_rehashed_total", Help: "Password hashes upgraded on login."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Issued sessions."},
	{ID: authcore.MetricSessionEvicted, Name: "authcore_session_evicted_total", Help: "Sessions evicted by the session policy."},
	{ID: authcore.MetricSessionExpired, Name: "authcore_session_expired_total", Help: "Sessions invalidated on validation after expiry."},
	{ID: authcore.MetricSessionCascadeRevoked, Name: "authcore_session_cascade_revoked_total", Help: "Sessions revoked because the owner is disabled."},
	{ID: authcore.MetricValidateSuccess, Name: "authcore_validate_success_total", Help: "Accepted bearer tokens."},
	{ID: authcore.MetricValidateFailure, Name: "authcore_validate_failure_total", Help: "Rejected bearer tokens."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logouts and revocations."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
	{ID: authcore.MetricSessionsPurged, Name: "authcore_sessions_purged_total", Help: "Expired or invalidated session rows purged."},
	{ID: authcore.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Password reset requests."},
	{ID: authcore.MetricPasswordResetRateLimited, Name: "authcore_password_reset_rate_limited_total", Help: "Password reset operations refused by the brute-force tracker."},
	{ID: authcore.MetricPasswordResetConfirmSuccess, Name: "authcore_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: authcore.MetricPasswordResetConfirmFailure, Name: "authcore_password_reset_confirm_failure_total", Help: "Rejected password reset confirmations."},
	{ID: authcore.MetricEmailVerificationRequest, Name: "authcore_email_verification_request_total", Help: "Verification emails queued."},
	{ID: authcore.MetricEmailVerificationSuccess, Name: "authcore_email_verification_success_total", Help: "Verified email addresses."},
	{ID: authcore.MetricEmailVerificationFailure, Name: "authcore_email_verification_failure_total", Help: "Rejected verification tokens."},
	{ID: authcore.MetricAccountDisabled, Name: "authcore_account_disabled_total", Help: "Account disable operations."},
	{ID: authcore.MetricAccountEnabled, Name: "authcore_account_enabled_total", Help: "Account enable operations."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "ValidateToken latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more bucket for everything above the last bound.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
