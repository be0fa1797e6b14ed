// Package tokens implements the secure token lifecycle used for email
// verification, password resets, session login, and workspace invitations.
//
// Token lifecycle:
//   - Codec mints and verifies compact HS256 signed claims. It is stateless
//     and holds the process-wide signing secret loaded once at construction.
//   - VerificationRecords is the durable counterpart of every issued
//     verification token. The record, not the token, is the source of truth
//     for single-use semantics: consumption removes the record with a single
//     conditional delete so concurrent attempts cannot both succeed.
//   - Lifecycle orchestrates issuance (mint claim, persist record, notify)
//     and consumption (verify signature, enforce purpose, consume record).
//     A (subject, purpose) pair moves NoToken -> Pending -> Consumed or
//     Expired, and both terminal states permit a fresh issuance.
//
// Session tokens:
//   - Login tokens are stateless bearer tokens with their own SessionClaims
//     type. They are verified by signature alone and never routed through
//     Consume, so the type system keeps the reusable session path separate
//     from the single-use verification path.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Lifecycle and
//     the Authenticator to describe issuance, consumption, login, and
//     password reset events. Sinks run best-effort (errors are logged) so you
//     can forward to a database or queue without blocking token operations.
package tokens
