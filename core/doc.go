// Package core defines the domain model shared by the real-time rule engine
// and the batch correlator.
//
// # Types
//
//   - Event: one ingested log record (timestamp, host, tag, message, priority, source IP)
//   - Rule: a detection unit resolved at load time into a pattern, threshold or inert kind
//   - Alert: produced by the rule engine for a firing rule
//   - CorrelationAlert: produced by a pattern detector over a batch of events
//
// Every Alert and CorrelationAlert carries a Severity from the same
// four-level scale used by rules.
//
// The package also carries the CircuitBreaker used to protect notification
// channels.
package core
