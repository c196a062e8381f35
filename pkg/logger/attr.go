package logger

import "log/slog"

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Provider records a notification provider name under the key "provider".
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// AlertType records an alert type under the key "alert_type".
func AlertType(name string) slog.Attr {
	return slog.String("alert_type", name)
}

// Recipient records a tagged recipient under the key "recipient".
func Recipient(kind string, id int64) slog.Attr {
	return Group("recipient",
		slog.String("kind", kind),
		slog.Int64("id", id),
	)
}

// Scope records a settings scope under the key "scope".
func Scope(scopeType string, id int64) slog.Attr {
	return Group("scope",
		slog.String("type", scopeType),
		slog.Int64("id", id),
	)
}
