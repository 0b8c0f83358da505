// Package security provides input sanitization, request throttling,
// and secret handling for the tutorial app.
package security

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Input limits.
const (
	MaxInputLength = 10000
	MaxFileSize    = 10 * 1024 * 1024 // 10MB
)

// allowedDomains is the product documentation surface; URLs outside it
// are logged but not blocked.
var allowedDomains = []string{
	"nvidia.com",
	"developer.nvidia.com",
	"docs.nvidia.com",
	"forums.developer.nvidia.com",
}

// dangerousPatterns match content that must never pass through user
// input.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?is)<iframe[^>]*>.*?</iframe>`),
	regexp.MustCompile(`(?is)<object[^>]*>.*?</object>`),
	regexp.MustCompile(`(?is)<embed[^>]*>.*?</embed>`),
}

var controlChars = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")

// executable file signatures rejected on upload.
var executableSignatures = [][]byte{
	[]byte("#!/"),
	[]byte("<?php"),
	[]byte("<%"),
	[]byte("<script"),
}

// Error is a security violation.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "security: " + e.Msg }

func violation(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Sanitizer validates and cleans untrusted input.
type Sanitizer struct {
	maxLength int
	logger    *zap.Logger
}

// NewSanitizer creates a sanitizer with the default limits.
func NewSanitizer(logger *zap.Logger) *Sanitizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sanitizer{maxLength: MaxInputLength, logger: logger}
}

// SanitizeText strips control characters, truncates over-long input,
// and rejects dangerous content.
func (s *Sanitizer) SanitizeText(text string) (string, error) {
	if len(text) > s.maxLength {
		s.logger.Warn("input truncated",
			zap.Int("length", len(text)),
			zap.Int("max", s.maxLength))
		text = text[:s.maxLength]
	}

	text = controlChars.ReplaceAllString(text, "")

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(text) {
			s.logger.Warn("dangerous pattern in input", zap.String("pattern", pattern.String()))
			return "", violation("input contains dangerous content: %s", pattern.String())
		}
	}

	return strings.TrimSpace(text), nil
}

// ValidateUpload checks an uploaded file's size, name, and leading
// bytes.
func (s *Sanitizer) ValidateUpload(content []byte, filename string) error {
	if len(content) > MaxFileSize {
		return violation("file size %d exceeds maximum %d", len(content), MaxFileSize)
	}
	if strings.Contains(filename, "..") ||
		strings.ContainsAny(filename, `/\`) {
		return violation("invalid filename %q", filename)
	}
	for _, sig := range executableSignatures {
		if bytes.HasPrefix(content, sig) {
			return violation("file contains executable content")
		}
	}
	return nil
}

// SanitizeURL validates a URL's scheme and logs domains outside the
// allowlist without blocking them.
func (s *Sanitizer) SanitizeURL(raw string) (string, error) {
	if raw == "" {
		return raw, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", violation("invalid URL: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", violation("only HTTP and HTTPS URLs are allowed")
	}

	domain := strings.ToLower(parsed.Host)
	allowed := false
	for _, d := range allowedDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			allowed = true
			break
		}
	}
	if !allowed {
		// Allow but log: blocking external links would break the
		// tutorial content.
		s.logger.Warn("URL domain outside allowlist", zap.String("domain", domain))
	}

	return raw, nil
}
