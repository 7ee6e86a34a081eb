// Package i18n provides localized user-facing messages for error codes.
package i18n

import (
	"strings"
	"text/template"
)

// Code is the string form of an error code, duplicated from
// internal/errors to avoid an import cycle.
type Code = string

// Catalog holds localized message templates keyed by error code.
type Catalog struct {
	locale   string
	messages map[Code]string
}

// Locale returns the catalog's locale identifier.
func (c *Catalog) Locale() string {
	if c == nil {
		return ""
	}
	return c.locale
}

// Format renders the message for code, substituting metadata values into
// {{.Key}} placeholders. Unknown codes fall back to the code itself.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	if c == nil {
		return code
	}
	msg, ok := c.messages[code]
	if !ok {
		return code
	}
	if len(metadata) == 0 || !strings.Contains(msg, "{{") {
		return msg
	}
	tmpl, err := template.New(code).Parse(msg)
	if err != nil {
		return msg
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, metadata); err != nil {
		return msg
	}
	return b.String()
}

// GetCatalog returns the catalog for the given locale, defaulting to en-US
// when the locale is unknown.
func GetCatalog(locale string) *Catalog {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "", "en", "en-us":
		return enUSCatalog
	default:
		return enUSCatalog
	}
}
