// Package session keeps the operator's cached identity fresh and signs out
// when the backend stops vouching for it.
//
// There is no token on the wire. "Logged in" means a persisted key (an
// email or phone number) that the identity endpoint still resolves to a
// user. The Gate re-checks that key on start and then on a fixed interval
// (60 seconds by default).
//
// The gate fails closed. Any of the following clears the persisted key and
// the in-memory identity:
//   - a network failure or non-2xx answer from the identity endpoint
//   - a body without an email
//   - a domain authorization check that reports inactive or mismatched
//
// Callers observe three states. Unresolved holds only until the first check
// finishes and nothing behind the gate may proceed while in it.
package session
