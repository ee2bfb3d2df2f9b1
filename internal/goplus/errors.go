package goplus

import "fmt"

// CodeSuccess is the only provider status code that carries a complete payload.
// Code 2 means partial data; partial risk output must never be trusted.
const CodeSuccess = 1

// codeMessages maps documented GoPlus status codes to their meaning. Used
// when the provider omits its own message.
var codeMessages = map[int]string{
	1:    "Complete data prepared",
	2:    "Partial data obtained. Retry in about 15 seconds for full data.",
	2004: "Contract address format error",
	2018: "ChainID not supported",
	2020: "Non-contract address",
	2021: "No info for this contract",
	2022: "Non-supported chainId",
	2026: "dApp not found",
	2027: "ABI not found",
	2028: "ABI does not support parsing",
	4010: "App key not found",
	4011: "Signature expired or replayed request",
	4012: "Wrong signature",
	4022: "Invalid access token",
	4023: "Access token not found",
	4029: "Request limit reached",
	5000: "System error",
	5006: "Parameter error",
}

// APIError is a failure reported by (or on the way to) the GoPlus API.
// Code is the provider status code, 0 when the failure happened before a
// status code was obtained (transport error, timeout, open circuit).
type APIError struct {
	Code            int
	ProviderMessage string
	msg             string
}

func (e *APIError) Error() string { return e.msg }

// NewAPIError builds an APIError preferring the provider-supplied message,
// then the documented message for the code, then the fallback.
func NewAPIError(code int, providerMessage, fallback string) *APIError {
	message := providerMessage
	if message == "" {
		message = codeMessages[code]
	}

	var msg string
	if code == 0 {
		if message == "" {
			message = fallback
		}
		msg = message
	} else {
		detail := message
		if detail == "" {
			detail = fallback
		}
		msg = fmt.Sprintf("goplus error %d: %s", code, detail)
	}

	return &APIError{Code: code, ProviderMessage: message, msg: msg}
}

// transportError builds an APIError for failures with no provider status code.
func transportError(format string, args ...any) *APIError {
	return &APIError{msg: fmt.Sprintf(format, args...)}
}
