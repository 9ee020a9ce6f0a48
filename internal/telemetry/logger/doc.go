// Package logger provides structured logging for tokbroker.
//
// Loggers wrap log/slog behind the small Logger interface so packages can
// accept a logger without depending on a handler. Every logger built by New
// shares one level, which SetLevel changes at runtime; tokbroker-agent uses
// it to apply log.level from a reloaded configuration file.
//
// Attributes are scrubbed before they reach the handler: values under
// credential-like keys are replaced, bearer headers are masked and
// passwords embedded in connection URLs are removed. A request id stored
// with WithRequestID is added to every record logged with that context.
package logger
