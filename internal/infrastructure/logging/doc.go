// Package logging provides structured logging for the camera bridge.
//
// It wraps log/slog so every entry carries the service name and version,
// and offers helpers that scope a logger to a component or a camera:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	camLog := logger.Component("scheduler").ForDevice("00626e41d9a2")
//	camLog.Warn("probe failed", "error", err)
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log camera passwords. Request URLs are masked by the vendor client
// before they reach the logger.
package logging
