// Package filestore keeps credentials as files in a directory that several
// processes on one host (or on a shared filesystem) can use at once.
//
// Each key maps to one file holding a CBOR envelope with the expiry and the
// value. Writes go to a temporary file that is renamed into place, so
// readers see either the old or the new entry, never a partial one. Values
// can be sealed with an AEAD keyed from a passphrase; the entry key is
// bound as associated data so a file copied under another name fails to
// open.
package filestore
