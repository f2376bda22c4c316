package logging

import (
	"bytes"
	"context"
	"log"
	"log/slog"
	"strings"
)

// BridgeWriter adapts slog as an io.Writer so stdlib loggers (net/http's
// Server.ErrorLog in particular) flow through the structured sink.
// A leading "prefix: " such as "http: " becomes the component.
type BridgeWriter struct {
	component string
	level     slog.Level
}

// NewBridgeWriter creates a writer that forwards each write as one record.
// defaultComponent is used when the line carries no recognised prefix.
func NewBridgeWriter(defaultComponent string, level slog.Level) *BridgeWriter {
	return &BridgeWriter{component: defaultComponent, level: level}
}

// NewStdLogger returns a *log.Logger writing through a BridgeWriter at warn level.
func NewStdLogger(component string) *log.Logger {
	return log.New(NewBridgeWriter(component, slog.LevelWarn), "", 0)
}

// Write implements io.Writer.
func (bw *BridgeWriter) Write(p []byte) (int, error) {
	n := len(p)
	msg := string(bytes.TrimSpace(p))
	if msg == "" {
		return n, nil
	}
	msg = stripLogTimestamp(msg)

	component := bw.component
	if idx := strings.Index(msg, ": "); idx > 0 && idx < 24 && !strings.Contains(msg[:idx], " ") {
		if c, ok := canonicalComponent(strings.ToLower(msg[:idx])); ok {
			component = c
			msg = msg[idx+2:]
		}
	}

	ForComponent(component).Log(context.Background(), bw.level, msg)
	return n, nil
}

// stripLogTimestamp removes the prefix added by log.Ltime (and optionally
// log.Lmicroseconds) so slog's own timestamp is the only one.
func stripLogTimestamp(s string) string {
	if len(s) > 16 && s[2] == ':' && s[5] == ':' && s[8] == '.' && s[15] == ' ' {
		return s[16:]
	}
	if len(s) > 9 && s[2] == ':' && s[5] == ':' && s[8] == ' ' {
		return s[9:]
	}
	return s
}

// canonicalComponent maps stdlib log prefixes onto component names.
func canonicalComponent(prefix string) (string, bool) {
	switch prefix {
	case "http", "http2", "httputil":
		return CompHTTP, true
	case "websocket", "sse":
		return CompWeb, true
	case "sqlite", "cache":
		return CompCache, true
	case "minio", "s3", "source":
		return CompSource, true
	}
	return "", false
}
