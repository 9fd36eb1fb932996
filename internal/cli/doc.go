// Package cli provides the interactive Inkwell command-line client.
//
// It wires configuration, the local encrypted store, the session state
// machine, and an interactive REPL. Typical flow: unlock with the PIN (or
// the platform authenticator), then read and write journal entries until
// the session locks or the user exits.
//
// Key features:
//   - Setup / Unlock / Lock (PIN and biometric paths)
//   - Add / Edit entries with optional photo attachments
//   - List / Show entries, photo export
//   - Trash: delete, restore, purge, retention cleanup
//   - Disable encryption (destructive, PIN-confirmed)
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
