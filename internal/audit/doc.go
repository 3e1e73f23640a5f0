// Package audit carries security events from the engine to their sinks.
//
// The engine builds an [Event] for each login, admin change, tenant override
// and scope violation and hands it to a [Dispatcher]. The dispatcher queues
// events and a single goroutine delivers them to a [Sink]: the zap logger,
// the AuditLog table through [RecordSink], a JSON stream or a channel in
// tests. [MultiSink] combines them.
//
// Delivery is best effort. A full queue drops low-severity events when
// configured to; high-severity events wait. A sink that fails or panics is
// counted and logged, and the audited operation never sees it.
//
// The package decides nothing about which events exist. It must not import
// goGuard or any other internal package.
package audit
