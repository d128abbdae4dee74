package logging

import (
	"strings"
)

// Redacted replaces sensitive values in log output.
const Redacted = "[redacted]"

var sensitiveKeys = []string{
	"email",
	"phone",
	"token",
	"secret",
	"password",
	"authorization",
	"ip",
	"cpf",
	"document",
	"passport",
}

// IsSensitiveKey reports whether a metadata key is expected to carry personal data.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		switch {
		case k == s, strings.HasPrefix(k, s+"_"), strings.HasSuffix(k, "_"+s):
			return true
		case len(k) > len(s) && strings.HasSuffix(k, s):
			// camelCase suffix: userEmail, clientIp
			if c := key[len(key)-len(s)]; c >= 'A' && c <= 'Z' {
				return true
			}
		}
	}
	return false
}

// Redact returns a copy of fields with sensitive values masked. Nested maps are
// walked; the input is never modified.
func Redact(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsSensitiveKey(k) {
			out[k] = Redacted
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}
