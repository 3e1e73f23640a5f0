// Package password hashes account passwords with Argon2id.
//
// Stored hashes use the PHC layout with padded standard base64 for salt and
// key:
//
//	$argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// Hashes imported from an older store as bcrypt ($2a$, $2b$, $2y$) still
// verify. [Argon2.NeedsUpgrade] flags them, along with Argon2id hashes whose
// cost is below the current [Config], and the engine re-hashes after the next
// good login.
//
// Hashes with a cost below the package floors are treated as malformed, so a
// tampered row cannot downgrade verification to a trivial cost.
//
// This package holds no passwords and applies no length or complexity policy.
package password
