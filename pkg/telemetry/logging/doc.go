// Package logging configures the process-wide log/slog logger.
//
// Components obtain their loggers with slog.Default().With("component", ...),
// so Setup must run before they are constructed. The installed handler:
//   - writes JSON or text at the configured level
//   - adds request_id from the context, and trace_id/span_id when a span is active
//   - masks e-mail addresses and phone numbers when RedactPII is enabled
//
// # PII Redaction
//
//   - Emails: emma@example.com → ***@example.com
//   - Phones: +15550100003 → +***
//   - Values under keys such as "email" or "phone" are masked entirely
package logging
