// Package config loads YAML agent configuration and materializes a
// fully wired agent from it: signing key, nonce manager, key resolver
// and envelope codec.
package config
