// Package logging provides structured logging for the PPEnc stream server
// and MonsterMac.
package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/flickpp/ppenc/ppenc"
)

// NewLogger creates a new structured logger with the specified level and format.
// Supported levels: debug, info, warn, error
// Supported formats: text, json
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a new structured logger with a custom writer.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	lvl := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level: lvl,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Common attribute keys for consistent logging.
const (
	KeyDeviceID       = "device_id"
	KeySeqNum         = "seq_num"
	KeyBodyKeyNum     = "body_key_num"
	KeyErrorKind      = "error_kind"
	KeyComponent      = "component"
	KeyRemoteAddr     = "remote_addr"
	KeyLocalAddr      = "local_addr"
	KeyDuration       = "duration"
	KeyCount          = "count"
	KeyBytes          = "bytes"
	KeyResponseMAC    = "response_mac"
	KeyMonsterMacMode = "monstermac_mode"
)

// errKindNames gives each closed ppenc.ErrorKind a stable, short log value,
// distinct from (*ppenc.Error).Error()'s human sentence, so dashboards can
// group frame failures by kind without parsing free text.
var errKindNames = map[ppenc.ErrorKind]string{
	ppenc.ErrBadVersion:      "bad_version",
	ppenc.ErrBadSeqNum:       "bad_seq_num",
	ppenc.ErrBadBodyChecksum: "bad_body_checksum",
	ppenc.ErrBodyKeyInPast:   "body_key_in_past",
	ppenc.ErrUnknown:         "unknown",
}

// ErrAttrs expands a frame-handling error into slog attribute pairs. A
// *ppenc.Error gets its taxonomy kind (and, for ErrUnknown, the original
// wire code) attached alongside the error itself; every channel error is
// fatal to the connection (§7), so callers always log it at Warn or above
// and then close the stream. Any other error (e.g. a transport I/O
// failure) is logged as-is.
func ErrAttrs(err error) []any {
	var perr *ppenc.Error
	if errors.As(err, &perr) {
		attrs := []any{KeyErrorKind, errKindNames[perr.Kind]}
		if perr.Kind == ppenc.ErrUnknown {
			attrs = append(attrs, "error_code", perr.Code)
		}
		return append(attrs, "error", err)
	}
	return []any{"error", err}
}
