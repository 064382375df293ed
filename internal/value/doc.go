// Package value provides the typed payload model carried by emitter signals.
//
// Values are a small closed set of kinds: null, bool, int, float, string,
// list, record. Every Value has a structural Schema derivable via SchemaOf;
// emitters declare a Schema at creation and only accept conforming payloads.
//
// The package also provides a deterministic canonical JSON encoding
// (sorted record keys in UTF-16 code-unit order, NFC-normalized strings,
// no HTML escaping) used by the journal for content hashing and replay.
// Canonical output for identical values is byte-identical across runs.
package value
