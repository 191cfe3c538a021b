// Package password hashes credentials with Argon2id and checks candidate
// passwords against the composition policy.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.VerifyAndUpgrade] reports a replacement hash when the stored one was
// produced with weaker parameters, so callers can persist it after a
// successful login.
//
// [ValidateStrength] is a pure function. It never reveals which rule failed:
// the message is always the full [StrengthRules] text.
package password
