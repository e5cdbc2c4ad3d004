// Package logging provides structured logging for the Insteon core.
//
// It wraps log/slog with the service defaults every entry carries
// (service, version) and the outputs the configuration allows.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "/var/log/graylogic/insteon.log"
//
// Components do not import this package. They declare a small Logger
// interface (Debug, Info, Warn, Error) which *Logger satisfies.
package logging
