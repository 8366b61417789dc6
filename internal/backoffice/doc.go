// Package backoffice binds the generic list and action machinery to the
// back-office REST backend.
//
// It provides:
//   - a Registry of named action handlers that CUE page definitions refer
//     to ("deposit.approve", "withdraw.reject", ...)
//   - BuildCombination, the combination-task payload builder
//   - Authenticator, the email / phone sign-in in front of the session gate
//
// Compound handlers (deposit approval, withdraw rejection, balance
// adjustment, combine completion) issue several dependent requests. The
// backend offers no transaction across them, so a failure midway surfaces
// as an action.PartialFailure rather than being rolled back.
package backoffice
