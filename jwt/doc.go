// Package jwt encodes and decodes the HS256-signed tokens used by authcore.
//
// Three purposes exist. Access tokens are signed with the access secret and
// carry a snapshot of the account flags. Verification and reset tokens share
// the special secret and are told apart by their purpose claim, which
// [Codec.DecodeSpecial] checks against the caller's expectation.
//
// Every decode failure collapses to [ErrInvalidToken].
package jwt
