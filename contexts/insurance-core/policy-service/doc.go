// Package policyservice implements the policy lifecycle service inside the
// insurance-core context.
//
// The module owns the policy request lifecycle: intake with synchronous fraud
// classification, the correlation of asynchronous payment and subscription
// confirmations into a single terminal outcome, cancellation, and
// policy-event production through outbox-backed workers. Business rules live
// in application/domain layers; infrastructure stays behind ports and
// adapters.
package policyservice
