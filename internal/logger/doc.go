// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger writing console lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (InfoKV, ErrorKV, etc.).
//
// The updater and packager accept a context and extract the logger from it,
// enabling scoped, structured logging throughout the codebase. Stdout stays
// free for command output.
package logger
