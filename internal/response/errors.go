package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrAdminAccessOnly    ErrCode = "ADMIN_ACCESS_ONLY"
	ErrAdminDisabled      ErrCode = "ADMIN_DISABLED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrUnknownCategory ErrCode = "UNKNOWN_CATEGORY"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"

	// ─── Prediction ────────────────────────────────────────────────────
	ErrServiceNotReady ErrCode = "SERVICE_NOT_READY"
	ErrFeatureDisabled ErrCode = "FEATURE_DISABLED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid credentials."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrAdminDisabled:
		return "Admin access is not configured on this server."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrUnknownCategory:
		return "A categorical value is not part of the training vocabulary."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Prediction ────────────────────────────────────────────────────
	case ErrServiceNotReady:
		return "Prediction service is not ready: data failed to load."
	case ErrFeatureDisabled:
		return "This feature is disabled on this server."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
