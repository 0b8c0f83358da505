package security

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// Secret lookup order: environment first, then the optional secrets
// directory (one file per secret, as mounted by container runtimes).
const secretsDir = "/run/secrets"

// GetSecret resolves a named secret. Returns the fallback when the
// secret is not configured anywhere.
func GetSecret(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	data, err := os.ReadFile(secretsDir + "/" + strings.ToLower(name))
	if err == nil {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v
		}
	}
	return fallback
}

// HashValue returns the hex SHA-256 of value, for logging identifiers
// without exposing them.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Redact shortens a sensitive value to a loggable prefix.
func Redact(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "..." + HashValue(value)[:8]
}
