package gate

import "net/http"

// Code is a stable machine-readable rejection code. Client integrations
// key off these values, so they never change across versions.
type Code string

const (
	CodeNoToken           Code = "NO_TOKEN"
	CodeInvalidToken      Code = "INVALID_TOKEN"
	CodeUserNotFound      Code = "USER_NOT_FOUND"
	CodeInsufficientPerms Code = "INSUFFICIENT_PERMISSIONS"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	CodeIPBlocked         Code = "IP_BLOCKED"
	CodeInternalError     Code = "INTERNAL_ERROR"
)

// StatusForCode maps every code to its HTTP status. The mapping is total;
// an unknown code is treated as an internal fault.
func StatusForCode(code Code) int {
	switch code {
	case CodeNoToken, CodeInvalidToken, CodeUserNotFound:
		return http.StatusUnauthorized
	case CodeInsufficientPerms:
		return http.StatusForbidden
	case CodeRateLimitExceeded, CodeIPBlocked:
		return http.StatusTooManyRequests
	case CodeInternalError:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
