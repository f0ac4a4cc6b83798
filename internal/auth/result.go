// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package auth

// Code is a stable authorization failure tag.
type Code string

const (
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeTokenExpired      Code = "TOKEN_EXPIRED"
	CodeSessionInvalid    Code = "SESSION_INVALID"
	CodeAccountSuspended  Code = "ACCOUNT_SUSPENDED"
	CodeEmailNotVerified  Code = "EMAIL_NOT_VERIFIED"
	CodePhoneNotVerified  Code = "PHONE_NOT_VERIFIED"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeWorkspaceMismatch Code = "WORKSPACE_MISMATCH"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInternalError     Code = "INTERNAL_ERROR"
)

var codeMessages = map[Code]string{
	CodeUnauthorized:      "Authentication required",
	CodeTokenExpired:      "Session expired, please sign in again",
	CodeSessionInvalid:    "Session is invalid, please sign in again",
	CodeAccountSuspended:  "Account suspended",
	CodeEmailNotVerified:  "Email address must be verified",
	CodePhoneNotVerified:  "Phone number must be verified",
	CodePermissionDenied:  "You do not have permission to perform this action",
	CodeWorkspaceMismatch: "You do not have access to this workspace",
	CodeNotFound:          "Not found",
	CodeInternalError:     "Internal server error",
}

// Message returns the client-facing message for the code.
func (c Code) Message() string {
	if m, ok := codeMessages[c]; ok {
		return m
	}
	return string(c)
}

// IsCredentialFailure reports whether the code means the caller must sign in.
func (c Code) IsCredentialFailure() bool {
	return c == CodeUnauthorized || c == CodeTokenExpired || c == CodeSessionInvalid
}

// IsVerificationFailure reports whether the code is a contact verification gate.
func (c Code) IsVerificationFailure() bool {
	return c == CodeEmailNotVerified || c == CodePhoneNotVerified
}

// Result is an authorization verdict: either Granted or Denied.
type Result interface {
	isResult()
	Context() AuthContext
}

// Granted admits the request.
type Granted struct {
	Ctx AuthContext

	// Data is nil for guests.
	Data *AuthData

	// NeedsRefresh asks the caller to extend the session in the background.
	NeedsRefresh bool
}

// Denied rejects the request.
type Denied struct {
	Code Code

	// Ctx is the guest context for credential failures and the resolved
	// account's context for gate failures.
	Ctx AuthContext

	// Data is set when the session resolved but a gate failed, so pages
	// such as the verification flow can still render the caller.
	Data *AuthData
}

func (Granted) isResult() {}
func (Denied) isResult()  {}

// Context returns the identity the verdict was reached for.
func (g Granted) Context() AuthContext { return g.Ctx }

// Context returns the identity the verdict was reached for.
func (d Denied) Context() AuthContext { return d.Ctx }

// Outcome is the metrics label for a verdict.
func Outcome(r Result) string {
	switch v := r.(type) {
	case Granted:
		if v.Data == nil {
			return "guest"
		}
		return "granted"
	case Denied:
		return string(v.Code)
	default:
		return "unknown"
	}
}
