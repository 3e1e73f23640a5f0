// Package mail delivers outbound account notifications: one-time login codes
// and templated messages.
//
// Delivery never blocks or fails a login. [Dispatcher] runs each send on its
// own goroutine under a timeout and only logs failures.
package mail
