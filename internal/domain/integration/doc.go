// Package integration contains the external-mapping domain for e-commerce
// platform integrations: sub-status and payment-method mappings received
// from the platform, and the workflow task rules attached to them.
//
// A sub-status mapping carries the task catalog entries that decide which
// fulfillment tasks apply for an order in that external state; a
// payment-method mapping carries journal selection for payment
// registration. The workflow package consumes these through the resolver
// interfaces defined here.
package integration
