// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, verification and the staff gate

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staffSet struct {
	admins    map[string]bool
	operators map[string]bool
}

func (s staffSet) IsStaff(id string) bool { return s.admins[id] || s.operators[id] }
func (s staffSet) IsAdmin(id string) bool { return s.admins[id] }

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header    string
		wantToken string
		wantErr   string
	}{
		{"", "", "missing authorization header"},
		{"Basic abc", "", "invalid authorization header format"},
		{"Bearer ", "", "empty token"},
		{"Bearer abc.def", "abc.def", ""},
	}
	for _, tt := range tests {
		token, errMsg := extractBearerToken(tt.header)
		if token != tt.wantToken || errMsg != tt.wantErr {
			t.Errorf("extractBearerToken(%q) = (%q, %q), want (%q, %q)", tt.header, token, errMsg, tt.wantToken, tt.wantErr)
		}
	}
}

func TestHTTPAuthMiddleware(t *testing.T) {
	v := newTestVerifier(t)
	staff := staffSet{
		admins:    map[string]bool{"1": true},
		operators: map[string]bool{"2": true},
	}

	var seen *Operator
	handler := HTTPAuthMiddleware(v, staff, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	token := func(id string) string {
		s, err := v.Generate(id, time.Hour)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		return "Bearer " + s
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantOp     *Operator
	}{
		{"missing header", "", http.StatusUnauthorized, nil},
		{"bad token", "Bearer nope", http.StatusUnauthorized, nil},
		{"not staff", token("3"), http.StatusForbidden, nil},
		{"operator", token("2"), http.StatusNoContent, &Operator{ID: "2"}},
		{"admin", token("1"), http.StatusNoContent, &Operator{ID: "1", Admin: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/dialogs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantOp == nil {
				if seen != nil {
					t.Errorf("handler ran with operator %+v", seen)
				}
				return
			}
			if seen == nil || *seen != *tt.wantOp {
				t.Errorf("operator = %+v, want %+v", seen, tt.wantOp)
			}
		})
	}
}

func TestFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if op := FromContext(req.Context()); op != nil {
		t.Errorf("FromContext() = %+v, want nil", op)
	}
}
