// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Accepts only tokens whose subject is a configured operator or admin

package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// StaffDirectory answers whether a principal is staff.
type StaffDirectory interface {
	IsStaff(id string) bool
	IsAdmin(id string) bool
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return "", "invalid authorization header format"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "empty token"
	}
	return token, ""
}

// HTTPAuthMiddleware verifies the bearer token and requires its subject to
// be staff. Staff lists come from configuration, so removing an operator
// revokes their tokens on the next restart.
func HTTPAuthMiddleware(verifier TokenVerifier, staff StaffDirectory, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeError(w, http.StatusUnauthorized, errMsg)
				return
			}

			operatorID, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected token", "error", err, "remote", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if !staff.IsStaff(operatorID) {
				logger.Warn("token for non-staff principal", "operator_id", operatorID)
				writeError(w, http.StatusForbidden, "operator access required")
				return
			}

			op := &Operator{ID: operatorID, Admin: staff.IsAdmin(operatorID)}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
