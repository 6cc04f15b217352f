// Package auth authenticates operators calling the HTTP API.
//
// Tokens are HS256 JWTs signed with auth.jwt_secret. The subject is the
// operator's chat id as it appears in the staff configuration:
//
//	verifier, err := auth.NewJWTVerifier(secret)
//	token, err := verifier.Generate("123456", 24*time.Hour)
//
// HTTPAuthMiddleware rejects requests without a valid bearer token (401)
// and tokens whose subject is no longer staff (403). Handlers read the
// caller with FromContext.
package auth
