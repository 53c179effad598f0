// Package workflow contains the order fulfillment pipeline engine: the
// persisted, order-scoped plan of fulfillment tasks derived from an
// order's external sub-statuses and payment method, and the state machine
// that executes it one task at a time.
//
// A Pipeline owns an ordered sequence of TaskLines. The TaskListBuilder
// computes the plan from the task catalog attached to the resolved
// sub-status mappings; the application layer drives execution through the
// Dispatcher, which submits task runs to a durable job queue.
package workflow
