package blob

import "strings"

// IsNetworkError reports whether err's message looks like a transient
// network failure (connection reset, timeout, DNS, TLS handshake), copied
// and trimmed from the teacher's string-indicator classifier — the Azure
// SDK, like the teacher's prior cloud SDKs, doesn't expose a typed
// "retryable" flag uniformly across its error paths.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	indicators := []string{
		"connection",
		"timeout",
		"network",
		"eof",
		"broken pipe",
		"tls handshake",
	}
	for _, indicator := range indicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// IsCredentialError reports whether err's message looks like an
// authentication/authorization failure.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	indicators := []string{
		"403",
		"unauthorized",
		"expired",
		"invalid token",
		"authenticationfailed",
	}
	for _, indicator := range indicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// Classify maps err into either a transient or permanent upload error per
// the network/credential indicators above. Anything unrecognized is
// treated as transient — retrying is cheaper than silently abandoning a
// file on an error shape we've never seen.
func Classify(err error) (transient bool) {
	if err == nil {
		return false
	}
	if IsCredentialError(err) {
		return false
	}
	return true
}
