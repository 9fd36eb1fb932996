package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isUnlocked() bool
	Setup(ctx context.Context) error
	Unlock(ctx context.Context) error
	UnlockBiometric(ctx context.Context) error
	LockNow(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context) error
	Photo(ctx context.Context) error
	Add(ctx context.Context) error
	Edit(ctx context.Context) error
	Delete(ctx context.Context) error
	Trash(ctx context.Context) error
	Restore(ctx context.Context) error
	Purge(ctx context.Context) error
	Cleanup(ctx context.Context) error
	EnableBiometric(ctx context.Context) error
	DisableEncryption(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the Inkwell CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// The prompt shows the current lock status (from statusFn) and accepts:
//
//	Locked:
//	  - help             — show available commands
//	  - setup            — configure a PIN (first run)
//	  - unlock           — unlock with the PIN
//	  - unlock-bio       — unlock with the platform authenticator
//	  - exit | quit      — leave the program
//
//	Unlocked:
//	  - help             — show available commands
//	  - (l)ist           — list entries
//	  - show             — show a single entry (interactive ID prompt)
//	  - photo            — export an entry's photo to ./photos/
//	  - add              — write a new entry
//	  - edit             — rewrite an entry
//	  - delete           — move an entry to the trash
//	  - trash            — list trashed entries
//	  - restore          — bring an entry back from the trash
//	  - purge            — permanently delete a trashed entry
//	  - cleanup          — purge trashed entries past the retention window
//	  - lock             — lock the journal now
//	  - enable-bio       — register biometric unlock
//	  - disable-encryption — turn encryption off (destructive)
//	  - exit | quit      — leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// report their own errors. This keeps the REPL loop resilient and focused on I/O.
//
// Commands from the unlocked set are never dispatched while the journal is
// locked, so a handler can assume the session key is resident when it runs.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	unlockedOnly := map[string]bool{
		"l": true, "list": true, "show": true, "photo": true,
		"add": true, "edit": true, "delete": true, "trash": true,
		"restore": true, "purge": true, "cleanup": true, "lock": true,
		"enable-bio": true, "disable-encryption": true,
	}

	for {
		printlnFn(fmt.Sprintf("inkwell> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		if unlockedOnly[cmd] && !a.isUnlocked() {
			printlnFn("The journal is locked. Use unlock or unlock-bio first.")
			continue
		}

		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn("Available commands: (l)ist, show, photo, add, edit, delete, trash, restore, purge, cleanup, lock, enable-bio, disable-encryption, exit")
			} else {
				printlnFn("Available commands: setup, unlock, unlock-bio, exit")
			}

		case "setup":
			_ = a.Setup(ctx)

		case "unlock":
			_ = a.Unlock(ctx)

		case "unlock-bio":
			_ = a.UnlockBiometric(ctx)

		case "lock":
			_ = a.LockNow(ctx)

		case "l", "list":
			_ = a.List(ctx)

		case "show":
			_ = a.Show(ctx)

		case "photo":
			_ = a.Photo(ctx)

		case "add":
			_ = a.Add(ctx)

		case "edit":
			_ = a.Edit(ctx)

		case "delete":
			_ = a.Delete(ctx)

		case "trash":
			_ = a.Trash(ctx)

		case "restore":
			_ = a.Restore(ctx)

		case "purge":
			_ = a.Purge(ctx)

		case "cleanup":
			_ = a.Cleanup(ctx)

		case "enable-bio":
			_ = a.EnableBiometric(ctx)

		case "disable-encryption":
			_ = a.DisableEncryption(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
