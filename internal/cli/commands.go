package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/filex"
	"github.com/inkwellapp/inkwell/internal/services"
)

// Setup configures the journal PIN on first run and turns encryption on.
func (a *App) Setup(ctx context.Context) error {
	pin, err := GetPIN(a.out, "Choose a PIN")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)

	confirm, err := GetPIN(a.out, "Repeat the PIN")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(pin) != string(confirm) {
		fmt.Fprintln(a.out, "PINs do not match.")
		return nil
	}

	if err := a.session.SetupPIN(ctx, string(pin)); err != nil {
		fmt.Fprintln(a.out, "Setup failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "PIN configured. The journal is unlocked.")
	return nil
}

// Unlock prompts for the PIN and unlocks the journal.
func (a *App) Unlock(ctx context.Context) error {
	pin, err := GetPIN(a.out, "Enter PIN")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)

	ok, err := a.session.Unlock(ctx, string(pin))
	switch {
	case errors.Is(err, common.ErrLockedOut):
		fmt.Fprintln(a.out, "Too many attempts. Try again in a moment.")
		return err
	case err != nil:
		fmt.Fprintln(a.out, "Unlock failed:", err)
		return err
	case !ok:
		fmt.Fprintln(a.out, "Wrong PIN.")
		return nil
	}
	fmt.Fprintln(a.out, "Unlocked.")
	return nil
}

// UnlockBiometric unlocks through the platform authenticator.
func (a *App) UnlockBiometric(ctx context.Context) error {
	ok, err := a.session.UnlockWithBiometric(ctx)
	if err != nil {
		if errors.Is(err, common.ErrBiometricUnavailable) {
			fmt.Fprintln(a.out, "Biometric unlock is not available here.")
		} else {
			fmt.Fprintln(a.out, "Biometric unlock failed. Use your PIN.")
		}
		return err
	}
	if ok {
		fmt.Fprintln(a.out, "Unlocked.")
	}
	return nil
}

// LockNow locks the journal immediately.
func (a *App) LockNow(ctx context.Context) error {
	a.session.Lock()
	fmt.Fprintln(a.out, "Locked.")
	return nil
}

// List prints all entries, newest first.
func (a *App) List(ctx context.Context) error {
	a.session.Touch()

	res, err := a.entries.List(ctx, false)
	if err != nil {
		fmt.Fprintln(a.out, "List failed:", err)
		return err
	}
	if len(res.Entries) == 0 {
		fmt.Fprintln(a.out, "No entries yet.")
		return nil
	}
	for _, e := range res.Entries {
		preview := e.Content
		if len(preview) > 60 {
			preview = preview[:60] + "..."
		}
		switch {
		case e.Failed:
			preview = "(unreadable entry)"
		case preview == "":
			preview = fmt.Sprintf("(%d words)", e.WordCount)
		}
		fmt.Fprintf(a.out, "%s  %s  %s\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04"), preview)
	}
	return nil
}

// Show prints a single entry in full (interactive ID prompt).
func (a *App) Show(ctx context.Context) error {
	a.session.Touch()

	id, err := GetSimpleText(a.reader, "Entry ID", a.out)
	if err != nil {
		return err
	}

	e, err := a.entries.Get(ctx, id)
	if err != nil {
		fmt.Fprintln(a.out, "Show failed:", err)
		return err
	}
	if e.Failed {
		fmt.Fprintln(a.out, "This entry could not be decrypted.")
		return nil
	}

	fmt.Fprintf(a.out, "Created: %s\n", e.CreatedAt.Format("2006-01-02 15:04"))
	if e.Mood != "" {
		fmt.Fprintf(a.out, "Mood: %s\n", e.Mood)
	}
	fmt.Fprintln(a.out, e.Content)
	return nil
}

// Add writes a new journal entry.
func (a *App) Add(ctx context.Context) error {
	a.session.Touch()

	content, err := GetMultiline(a.reader, "Write your entry", a.out)
	if err != nil {
		return err
	}
	mood, err := GetSimpleText(a.reader, "Mood (optional)", a.out)
	if err != nil {
		return err
	}

	in, err := a.entryInput(content, mood)
	if err != nil {
		fmt.Fprintln(a.out, "Add failed:", err)
		return err
	}

	e, err := a.entries.Create(ctx, in)
	if err != nil {
		fmt.Fprintln(a.out, "Add failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Saved entry", e.ID)
	return nil
}

// Edit rewrites an existing entry in full.
func (a *App) Edit(ctx context.Context) error {
	a.session.Touch()

	id, err := GetSimpleText(a.reader, "Entry ID", a.out)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "New text", a.out)
	if err != nil {
		return err
	}
	mood, err := GetSimpleText(a.reader, "Mood (optional)", a.out)
	if err != nil {
		return err
	}

	in, err := a.entryInput(content, mood)
	if err != nil {
		fmt.Fprintln(a.out, "Edit failed:", err)
		return err
	}

	if _, err := a.entries.Update(ctx, id, in); err != nil {
		fmt.Fprintln(a.out, "Edit failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Updated.")
	return nil
}

// Delete moves an entry to the trash.
func (a *App) Delete(ctx context.Context) error {
	a.session.Touch()

	id, err := GetSimpleText(a.reader, "Entry ID", a.out)
	if err != nil {
		return err
	}
	if err := a.entries.Delete(ctx, id); err != nil {
		fmt.Fprintln(a.out, "Delete failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Moved to trash.")
	return nil
}

// Trash lists trashed entries.
func (a *App) Trash(ctx context.Context) error {
	a.session.Touch()

	items, err := a.entries.Trash(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "Trash failed:", err)
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Trash is empty.")
		return nil
	}
	for _, e := range items {
		fmt.Fprintf(a.out, "%s  deleted %s  (%d words)\n", e.ID, e.DeletedAt.Format("2006-01-02"), e.WordCount)
	}
	return nil
}

// Restore brings an entry back from the trash.
func (a *App) Restore(ctx context.Context) error {
	a.session.Touch()

	id, err := GetSimpleText(a.reader, "Entry ID", a.out)
	if err != nil {
		return err
	}
	if err := a.entries.Restore(ctx, id); err != nil {
		fmt.Fprintln(a.out, "Restore failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Restored.")
	return nil
}

// Purge permanently deletes a trashed entry.
func (a *App) Purge(ctx context.Context) error {
	a.session.Touch()

	id, err := GetSimpleText(a.reader, "Entry ID", a.out)
	if err != nil {
		return err
	}
	if err := a.entries.PermanentlyDelete(ctx, id); err != nil {
		fmt.Fprintln(a.out, "Purge failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Permanently deleted.")
	return nil
}

// Cleanup purges trashed entries past the retention window.
func (a *App) Cleanup(ctx context.Context) error {
	a.session.Touch()

	n, err := a.entries.CleanupTrash(ctx, a.config.TrashRetentionDays())
	if err != nil {
		fmt.Fprintln(a.out, "Cleanup failed:", err)
		return err
	}
	fmt.Fprintf(a.out, "Purged %d entries.\n", n)
	return nil
}

// EnableBiometric registers the platform authenticator for unlock.
func (a *App) EnableBiometric(ctx context.Context) error {
	ok, err := a.session.SetupBiometric(ctx)
	if err != nil {
		if errors.Is(err, common.ErrBiometricUnavailable) {
			fmt.Fprintln(a.out, "Biometric unlock is not available here.")
		} else {
			fmt.Fprintln(a.out, "Biometric setup failed:", err)
		}
		return err
	}
	if ok {
		fmt.Fprintln(a.out, "Biometric unlock enabled.")
	}
	return nil
}

// DisableEncryption turns encryption off after confirming the PIN. All
// previously encrypted entries become permanently unreadable.
func (a *App) DisableEncryption(ctx context.Context) error {
	confirm, err := GetSimpleText(a.reader,
		"Disabling encryption makes every encrypted entry permanently unreadable. Type 'yes' to continue", a.out)
	if err != nil {
		return err
	}
	if confirm != "yes" {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}

	pin, err := GetPIN(a.out, "Enter PIN")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)

	ok, err := a.session.DisableEncryption(ctx, string(pin))
	if err != nil {
		fmt.Fprintln(a.out, "Disable failed:", err)
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Wrong PIN.")
		return nil
	}
	fmt.Fprintln(a.out, "Encryption disabled.")
	return nil
}

// Photo decrypts the photo attached to an entry and writes it into a
// photos/ subdirectory of the working directory.
func (a *App) Photo(ctx context.Context) error {
	a.session.Touch()

	id, err := GetSimpleText(a.reader, "Entry ID", a.out)
	if err != nil {
		return err
	}

	p, err := a.entries.GetPhoto(ctx, id)
	if err != nil {
		fmt.Fprintln(a.out, "Photo failed:", err)
		return err
	}

	dir, err := filex.EnsureSubDir("photos")
	if err != nil {
		fmt.Fprintln(a.out, "Photo failed:", err)
		return err
	}

	exts, _ := mime.ExtensionsByType(p.MimeType)
	ext := ".bin"
	if len(exts) > 0 {
		ext = exts[0]
	}
	path := filepath.Join(dir, id+ext)
	if err := os.WriteFile(path, p.Data, 0o600); err != nil {
		fmt.Fprintln(a.out, "Photo failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Saved photo to", path)
	return nil
}

func (a *App) entryInput(content, mood string) (services.EntryInput, error) {
	in := services.EntryInput{Content: content, Mood: mood}

	path, err := GetSimpleText(a.reader, "Photo path (optional)", a.out)
	if err != nil {
		return in, err
	}
	if path == "" {
		return in, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return in, fmt.Errorf("read photo: %w", err)
	}
	caption, err := GetSimpleText(a.reader, "Caption (optional)", a.out)
	if err != nil {
		return in, err
	}
	in.Photo = &services.PhotoInput{
		Data:     data,
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		Caption:  caption,
	}
	return in, nil
}
