package auth

import "errors"

// ErrAuthenticationFailed covers every expected authentication failure:
// unknown identifier, wrong password, inactive account, invalid or expired
// token, and refresh-token mismatch. A single sentinel with a single generic
// message keeps the API from leaking which check failed (anti-enumeration).
var ErrAuthenticationFailed = errors.New("authentication failed")
