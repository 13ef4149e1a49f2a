package core

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// MinTokenLength is the shortest bearer token the HTTP transport accepts.
const MinTokenLength = 16

// SecureCompareString compares a and b in constant time.
func SecureCompareString(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidateAuthToken rejects empty, short or obviously weak tokens.
func ValidateAuthToken(token string) error {
	if token == "" {
		return NewError(ErrInvalidParameter, "Authentication token cannot be empty").
			WithGuidance("Provide a valid authentication token.")
	}

	if len(token) < MinTokenLength {
		return NewError(ErrInvalidParameter, "Authentication token is too short").
			WithGuidance("Use a token with at least 16 characters.")
	}

	lower := strings.ToLower(token)
	for _, weak := range []string{"password", "secret", "token", "admin", "test", "default", "12345"} {
		if strings.Contains(lower, weak) {
			return NewError(ErrInvalidParameter, "Authentication token appears to be weak").
				WithGuidance("Use a randomly generated, strong authentication token.")
		}
	}

	return nil
}

// AuthResult represents the result of authentication
type AuthResult struct {
	Authorized bool
	Error      string
	Duration   time.Duration
}

// Authenticate checks a request against token. Both "Bearer <token>" and
// basic auth with token as the password are accepted.
func Authenticate(r *http.Request, token string) AuthResult {
	start := time.Now()
	result := func(err string) AuthResult {
		return AuthResult{Authorized: err == "", Error: err, Duration: time.Since(start)}
	}

	if _, password, ok := r.BasicAuth(); ok {
		if !SecureCompareString(password, token) {
			return result("Invalid basic auth credentials")
		}
		return result("")
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return result("Missing Authorization header")
	}

	scheme, presented, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" {
		return result("Invalid Authorization header format")
	}
	if !SecureCompareString(presented, token) {
		return result("Invalid bearer token")
	}
	return result("")
}
