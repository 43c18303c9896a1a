package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
)

const (
	// BookingNumberPrefix is prepended to every generated booking number.
	BookingNumberPrefix = "SPK"

	// BookingNumberLength is the number of random characters after the prefix.
	BookingNumberLength = 6

	// BookingNumberMaxAttempts bounds collision retries during generation.
	BookingNumberMaxAttempts = 5
)

const (
	// DefaultSessionTTL admin session lifetime in seconds
	DefaultSessionTTL = 12 * 60 * 60

	// RateLimitRequests requests allowed per window
	RateLimitRequests = 30

	// RateLimitWindow rate limit window in seconds
	RateLimitWindow = 60

	// WorkerQueueSize notification worker queue size
	WorkerQueueSize = 128

	// NotifyTimeoutSeconds request timeout for the drafting service
	NotifyTimeoutSeconds = 30
)

// DefaultAdminPasswords seeds a brand new password set so the admin view is
// never locked out of an empty store.
func DefaultAdminPasswords() []string {
	return []string{"admin123", "sparkle_admin_789", "top_secret_pass"}
}
