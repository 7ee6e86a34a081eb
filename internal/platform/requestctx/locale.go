// Package requestctx carries request-scoped values through context.
package requestctx

import "context"

// localeContextKey is the context key for the caller's preferred locale.
type localeContextKey struct{}

// WithLocale stores a locale identifier in context.
func WithLocale(ctx context.Context, locale string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, localeContextKey{}, locale)
}

// LocaleFromContext returns the locale identifier stored in context.
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(localeContextKey{}).(string)
	return value
}
