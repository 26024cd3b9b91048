package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrTransport        = errors.New("transport failure") // Wraps network-level errors (timeout, refused, reset)
	ErrDNSLookup        = errors.New("DNS lookup failed")
	ErrParsing          = errors.New("parsing error")       // Wraps URL/HTML/YAML parse errors
	ErrDatabase         = errors.New("capture store error") // Wraps badger errors
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrLoginFailed      = errors.New("form login failed")
	ErrConfigValidation = errors.New("configuration validation error")
	ErrSeedSetup        = errors.New("seed setup failed") // Wraps session construction / Setup hook errors
)

// CategorizeError maps an error to a predefined category string for logging and reports.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrDNSLookup):
		return "Network_DNSLookup"
	case errors.Is(err, ErrTransport):
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
			return "Network_Timeout"
		}
		if strings.Contains(msg, "connection refused") {
			return "Network_ConnectionRefused"
		}
		if strings.Contains(msg, "reset by peer") {
			return "Network_ConnectionReset"
		}
		return "Network_Other"
	case errors.Is(err, ErrParsing):
		msg := err.Error()
		if strings.Contains(msg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(msg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(msg, "YAML") {
			return "Content_ParsingYAML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrDatabase):
		return "Store_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrLoginFailed):
		return "Session_LoginFailed"
	case errors.Is(err, ErrSeedSetup):
		return "Session_SetupFailed"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerMsg, "tls") || strings.Contains(lowerMsg, "certificate") {
		return "Network_TLS"
	}

	return "Unknown"
}
