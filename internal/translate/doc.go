// Package translate calls the external translation service.
//
// Translation is best-effort enrichment: every failure mode (transport error,
// non-2xx response, timeout, open circuit) surfaces as an ordinary error that
// callers degrade into delivering the original text. A circuit breaker stops
// hammering an unreachable service, and identical in-flight requests are
// deduplicated so one fan-out translates each text/language pair once.
package translate
