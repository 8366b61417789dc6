// Package action implements the confirm-then-mutate workflow used for every
// state-changing row action.
//
// State machine:
//
//	Idle ──Trigger──▶ Confirming ──Cancel──▶ Idle
//	                       │
//	                    Confirm
//	                       ▼
//	                   InFlight ──all steps ok──▶ Succeeded ──Dismiss──▶ Idle
//	                       │
//	                       └──any step fails──▶ Failed ──Dismiss──▶ Idle
//
// Rules:
//   - Trigger always enters Confirming; no step runs before Confirm
//   - Cancel never issues a network call
//   - steps run in order and step n+1 only runs after step n succeeded
//   - on success the cached list receives the request's delta (or loses the
//     row for removal actions); on failure the cache is left untouched
//   - a record whose status is terminal for the action is not actionable and
//     Trigger refuses it without changing state
//   - one Workflow serves one list view, so at most one request is in
//     flight per view
//
// Compound actions have no compensating transaction. When a later step
// fails after an earlier mutating step succeeded, the backend is left half
// updated. Confirm reports this as a *PartialFailure, logs it at error level
// with partial_failure=true and writes it to the journal so an operator can
// reconcile by hand.
package action
