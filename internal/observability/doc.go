// Package observability builds the process logger and the Prometheus
// collectors shared by the call board services.
//
// Metrics methods are safe on a nil *Metrics so services can be constructed
// in tests without a registry.
package observability
