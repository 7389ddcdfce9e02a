// Package tokens keeps iCloud shared album tokens under short aliases so
// they can be referenced as "@alias" on the command line.
//
// Tokens are stored in the system keyring when one is available, with an
// encrypted file in the user's config directory as fallback. Aliases can
// also be supplied read-only through ICLOUDALBUM_TOKEN_<ALIAS> environment
// variables.
//
// A token is a capability: anyone holding it can read the album. Use
// MaskToken or Sanitize before printing one.
package tokens
