// Package soundarchive implements role-gated media ingestion and time-bounded
// media access for a sound heritage archive.
//
// A Service resolves callers into a Principal, gates every operation through
// Authorize, stores audio, image and video objects under category-namespaced
// keys, and hands out access URLs per key: stable public URLs for public
// records in a public bucket, short-lived signed URLs otherwise.
//
// Backends are pluggable. Content records live in a Repository (memory or
// Postgres under repo/), bytes live in an ObjectStore (memory, filesystem or
// S3 under storage/), and identities come from an IdentityProvider and
// RoleChecker (identity/).
//
// Visibility
//
// Anonymous callers see published, publicly visible records. Users see
// published records visible to users. Admins see everything. A record outside
// the caller's scope is reported as not found.
package soundarchive
