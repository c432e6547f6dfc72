// Package logging configures zerolog for wv-forge and keeps credential
// material out of every log sink.
package logging

import (
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// RedactedValue is the replacement string for sensitive data.
const RedactedValue = "[REDACTED]"

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

var redactions = []redaction{
	// AWS access key ids
	{regexp.MustCompile(`\b(AKIA|ASIA)[0-9A-Z]{16}\b`), RedactedValue},
	// Bearer tokens, keeping the scheme
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]{8,}`), "${1}" + RedactedValue},
	// KEY=value pairs for credential variables
	{regexp.MustCompile(`(?i)\b((?:aws_|s3_)?secret_access_key|(?:aws_|s3_)?access_key_id|prefix_api_key|aws_session_token)=[^\s"',]+`), "${1}=" + RedactedValue},
}

var sensitiveFieldNames = []string{
	"secret",
	"password",
	"token",
	"api_key",
	"apikey",
	"access_key",
	"authorization",
	"credentials",
}

var secrets = struct {
	sync.RWMutex
	values []string
}{}

// RegisterSecret adds an exact value that is redacted wherever it appears.
// Values shorter than four characters are ignored.
func RegisterSecret(value string) {
	value = strings.TrimSpace(value)
	if len(value) < 4 {
		return
	}
	secrets.Lock()
	defer secrets.Unlock()
	for _, existing := range secrets.values {
		if existing == value {
			return
		}
	}
	secrets.values = append(secrets.values, value)
	// Longest first so a secret containing another is replaced whole.
	sort.Slice(secrets.values, func(i, j int) bool {
		return len(secrets.values[i]) > len(secrets.values[j])
	})
}

func resetSecrets() {
	secrets.Lock()
	defer secrets.Unlock()
	secrets.values = nil
}

// ContainsSensitiveData reports whether s holds a registered secret or
// matches a credential pattern.
func ContainsSensitiveData(s string) bool {
	secrets.RLock()
	defer secrets.RUnlock()
	for _, value := range secrets.values {
		if strings.Contains(s, value) {
			return true
		}
	}
	for _, r := range redactions {
		if r.pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces registered secrets and credential patterns
// in value with RedactedValue.
func FilterSensitiveValue(value string) string {
	secrets.RLock()
	for _, secret := range secrets.values {
		value = strings.ReplaceAll(value, secret, RedactedValue)
	}
	secrets.RUnlock()
	for _, r := range redactions {
		value = r.pattern.ReplaceAllString(value, r.replacement)
	}
	return value
}

// IsSensitiveFieldName reports whether a field name indicates credential
// material.
func IsSensitiveFieldName(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFieldNames {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// SafeValue returns RedactedValue for sensitive field names and the
// filtered value otherwise.
func SafeValue(fieldName string, value string) string {
	if IsSensitiveFieldName(fieldName) && value != "" {
		return RedactedValue
	}
	return FilterSensitiveValue(value)
}

// SafeEnv redacts the values of sensitive KEY=value entries.
func SafeEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, entry := range env {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			out = append(out, FilterSensitiveValue(entry))
			continue
		}
		out = append(out, key+"="+SafeValue(key, value))
	}
	return out
}

// SensitiveDataHook flags events whose message carries sensitive data.
// zerolog hooks cannot rewrite a message; the FilteringWriter does the
// actual redaction.
type SensitiveDataHook struct{}

func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// FilteringWriter redacts sensitive data before it reaches the wrapped
// writer.
type FilteringWriter struct {
	w io.Writer
}

func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

func (fw *FilteringWriter) Write(p []byte) (int, error) {
	filtered := FilterSensitiveValue(string(p))
	if _, err := fw.w.Write([]byte(filtered)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteLevel keeps level routing intact when wrapped by MultiLevelWriter.
func (fw *FilteringWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if lw, ok := fw.w.(zerolog.LevelWriter); ok {
		filtered := FilterSensitiveValue(string(p))
		if _, err := lw.WriteLevel(level, []byte(filtered)); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return fw.Write(p)
}
