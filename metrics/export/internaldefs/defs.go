package internaldefs

import (
	"github.com/photoshare/photoauth"
)

// Source is what exporters read on every scrape. *photoauth.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() photoauth.MetricsSnapshot
	AuditDropped() uint64
	MailDropped() uint64
}

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   photoauth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   photoauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: photoauth.MetricSignupSuccess, Name: "photoauth_signup_success_total", Help: "Successful signups."},
	{ID: photoauth.MetricSignupDuplicate, Name: "photoauth_signup_duplicate_total", Help: "Signups rejected because the email is registered."},
	{ID: photoauth.MetricLoginSuccess, Name: "photoauth_login_success_total", Help: "Successful login attempts."},
	{ID: photoauth.MetricLoginFailure, Name: "photoauth_login_failure_total", Help: "Failed login attempts."},
	{ID: photoauth.MetricLoginUnconfirmed, Name: "photoauth_login_unconfirmed_total", Help: "Logins rejected for an unconfirmed email."},
	{ID: photoauth.MetricRefreshSuccess, Name: "photoauth_refresh_success_total", Help: "Successful refresh operations."},
	{ID: photoauth.MetricRefreshFailure, Name: "photoauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: photoauth.MetricRefreshReuseDetected, Name: "photoauth_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation."},
	{ID: photoauth.MetricLogout, Name: "photoauth_logout_total", Help: "Logout operations."},
	{ID: photoauth.MetricResolveSuccess, Name: "photoauth_resolve_success_total", Help: "Bearer tokens resolved to an identity."},
	{ID: photoauth.MetricResolveFailure, Name: "photoauth_resolve_failure_total", Help: "Bearer tokens rejected."},
	{ID: photoauth.MetricCacheHit, Name: "photoauth_cache_hit_total", Help: "Session cache hits."},
	{ID: photoauth.MetricCacheMiss, Name: "photoauth_cache_miss_total", Help: "Session cache misses."},
	{ID: photoauth.MetricCacheError, Name: "photoauth_cache_error_total", Help: "Session cache faults."},
	{ID: photoauth.MetricCacheCorrupt, Name: "photoauth_cache_corrupt_total", Help: "Undecodable session cache entries."},
	{ID: photoauth.MetricStoreError, Name: "photoauth_store_error_total", Help: "User store faults."},
	{ID: photoauth.MetricEmailVerificationRequest, Name: "photoauth_email_verification_request_total", Help: "Verification mail requests."},
	{ID: photoauth.MetricEmailVerificationSuccess, Name: "photoauth_email_verification_success_total", Help: "Confirmed email addresses."},
	{ID: photoauth.MetricEmailVerificationFailure, Name: "photoauth_email_verification_failure_total", Help: "Rejected confirmation tokens."},
	{ID: photoauth.MetricMailEnqueued, Name: "photoauth_mail_enqueued_total", Help: "Verification mails queued for delivery."},
	{ID: photoauth.MetricMailDropped, Name: "photoauth_mail_dropped_total", Help: "Verification mails dropped at enqueue."},
	{ID: photoauth.MetricPasswordUpgraded, Name: "photoauth_password_upgraded_total", Help: "Password hashes rehashed on login."},
	{ID: photoauth.MetricPermissionDenied, Name: "photoauth_permission_denied_total", Help: "Role checks that denied access."},
}

var HistogramDefs = []HistogramDef{
	{ID: photoauth.MetricResolveLatency, Name: "photoauth_resolve_latency_seconds", Help: "Current-user resolution latency."},
	{ID: photoauth.MetricHashLatency, Name: "photoauth_hash_latency_seconds", Help: "Password hash and verify latency."},
}

const (
	AuditDroppedName = "photoauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
	MailQueueDropped = "photoauth_mail_queue_dropped_total"
	MailQueueHelp    = "Verification mails dropped by the delivery queue."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more bucket for +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

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

// NormalizeBuckets copies raw into a fixed array, zero-filling short input.
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
