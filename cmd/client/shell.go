package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/atinyakov/sms-drafts/internal/app"
	"github.com/atinyakov/sms-drafts/internal/models"
)

const helpText = `Available commands:
  help
  add <type>               save a new draft under a generated id
  save <type> <id>         save or overwrite a draft
  compose <type> <id>      type a message line by line with autosave; end with "."
  get <type> <id>
  list [type]
  unsynced
  delete <type> <id>
  clear <type>
  synced <type> <id>       mark a draft as synced
  sync                     upload unsynced drafts now
  status
  exit
Draft types: ca-scores, exam-scores, admission-form, message
The data directory is locked while open: stop draftd before starting the shell on the same store.`

// shell is the interactive loop over a wired App.
type shell struct {
	app *app.App
	in  *bufio.Scanner
	out io.Writer
}

func newShell(a *app.App, in io.Reader, out io.Writer) *shell {
	return &shell{app: a, in: bufio.NewScanner(in), out: out}
}

// run reads commands until exit or end of input.
func (s *shell) run(ctx context.Context) {
	for {
		fmt.Fprint(s.out, "drafts> ")
		if !s.in.Scan() {
			return
		}
		args := strings.Fields(s.in.Text())
		if len(args) == 0 {
			continue
		}
		if s.exec(ctx, args) {
			return
		}
	}
}

// exec runs one command and reports whether the shell should stop.
func (s *shell) exec(ctx context.Context, args []string) bool {
	store := s.app.Store

	switch args[0] {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "add":
		t, ok := s.draftType(args, 2, "add <type>")
		if !ok {
			return false
		}
		s.save(t, uuid.NewString())
	case "save":
		key, ok := s.draftKey(args, "save <type> <id>")
		if !ok {
			return false
		}
		s.save(key.Type, key.ID)
	case "compose":
		key, ok := s.draftKey(args, "compose <type> <id>")
		if !ok {
			return false
		}
		s.compose(key)
	case "get":
		key, ok := s.draftKey(args, "get <type> <id>")
		if !ok {
			return false
		}
		d, found := store.Get(key.Type, key.ID)
		if !found {
			fmt.Fprintln(s.out, "Draft not found")
			return false
		}
		s.printJSON(d)
	case "list":
		drafts := store.All()
		if len(args) > 1 {
			t, ok := s.draftType(args, 2, "list [type]")
			if !ok {
				return false
			}
			drafts = store.ListByType(t)
		}
		s.printList(drafts)
	case "unsynced":
		s.printList(store.Unsynced())
	case "delete":
		key, ok := s.draftKey(args, "delete <type> <id>")
		if !ok {
			return false
		}
		if err := s.app.Syncer.ClearDraftAfterSync(key.Type, key.ID); err != nil {
			fmt.Fprintf(s.out, "Delete failed: %v\n", err)
			return false
		}
		fmt.Fprintln(s.out, "Draft deleted")
	case "clear":
		t, ok := s.draftType(args, 2, "clear <type>")
		if !ok {
			return false
		}
		if err := store.ClearByType(t); err != nil {
			fmt.Fprintf(s.out, "Clear failed: %v\n", err)
			return false
		}
		fmt.Fprintf(s.out, "Cleared %s drafts\n", t)
	case "synced":
		key, ok := s.draftKey(args, "synced <type> <id>")
		if !ok {
			return false
		}
		if err := store.MarkSynced(key.Type, key.ID); err != nil {
			fmt.Fprintf(s.out, "Mark synced failed: %v\n", err)
			return false
		}
		fmt.Fprintln(s.out, "Draft marked synced")
	case "sync":
		res := s.app.Syncer.SyncDrafts(ctx, s.app.Upload)
		if res.Skipped {
			fmt.Fprintln(s.out, "Backend offline, nothing sent")
			return false
		}
		fmt.Fprintf(s.out, "Attempted %d, synced %d, failed %d\n", res.Attempted, res.Synced, len(res.Failed))
		for _, f := range res.Failed {
			fmt.Fprintf(s.out, "  %s/%s: %s\n", f.Type, f.ID, f.Error)
		}
	case "status":
		state := "offline"
		if s.app.Detector.Online() {
			state = "online"
		}
		fmt.Fprintf(s.out, "Backend %s, %d unsynced of %d drafts\n", state, len(store.Unsynced()), store.Len())
	case "exit":
		fmt.Fprintln(s.out, "Bye")
		return true
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return false
}

func (s *shell) save(t models.DraftType, id string) {
	data, err := promptData(s.in, s.out)
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	d, err := s.app.Store.Save(t, id, data)
	if err != nil {
		fmt.Fprintf(s.out, "Save failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Draft saved: %s\n", d.Key())
}

// compose edits {"text": ...} for key, autosaving after each line.
func (s *shell) compose(key models.DraftKey) {
	as := s.app.Autosaver(key.Type, key.ID)
	defer as.Close()

	var doc struct {
		Text string `json:"text"`
	}
	if data, ok := as.Restore(); ok {
		text, err := decodeText(data)
		if err != nil {
			fmt.Fprintf(s.out, "Draft %s is not a text draft (%v); use save to replace it\n", key, err)
			return
		}
		doc.Text = text
		fmt.Fprintf(s.out, "Restored draft:\n%s\n", doc.Text)
	}

	lines := []string{}
	if doc.Text != "" {
		lines = strings.Split(doc.Text, "\n")
	}
	for {
		fmt.Fprint(s.out, "... ")
		if !s.in.Scan() {
			break
		}
		line := s.in.Text()
		if line == "." {
			break
		}
		lines = append(lines, line)
		doc.Text = strings.Join(lines, "\n")
		data, _ := json.Marshal(doc)
		as.DebouncedSave(data)
	}

	as.Flush()
	if at, ok := as.LastSaved(); ok {
		fmt.Fprintf(s.out, "Draft saved: %s at %s\n", key, at.Format("15:04:05"))
	}
}

// decodeText reads the text of a {"text": ...} draft. null and {} are empty.
func decodeText(data json.RawMessage) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", err
	}
	for k := range fields {
		if k != "text" {
			return "", fmt.Errorf("unexpected field %q", k)
		}
	}
	var text string
	if raw, ok := fields["text"]; ok {
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", fmt.Errorf("text: %w", err)
		}
	}
	return text, nil
}

func (s *shell) draftType(args []string, n int, usage string) (models.DraftType, bool) {
	if len(args) < n {
		fmt.Fprintf(s.out, "Usage: %s\n", usage)
		return "", false
	}
	t, err := models.ParseDraftType(args[1])
	if err != nil {
		fmt.Fprintln(s.out, err)
		return "", false
	}
	return t, true
}

func (s *shell) draftKey(args []string, usage string) (models.DraftKey, bool) {
	if len(args) < 3 {
		fmt.Fprintf(s.out, "Usage: %s\n", usage)
		return models.DraftKey{}, false
	}
	t, ok := s.draftType(args, 2, usage)
	if !ok {
		return models.DraftKey{}, false
	}
	return models.DraftKey{Type: t, ID: args[2]}, true
}

func (s *shell) printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(s.out, string(b))
}

func (s *shell) printList(drafts []models.Draft) {
	if len(drafts) == 0 {
		fmt.Fprintln(s.out, "No drafts")
		return
	}
	for _, d := range drafts {
		state := "unsynced"
		if d.IsSynced {
			state = "synced"
		}
		fmt.Fprintf(s.out, "%s\t%s\t%s\n", d.Key(), d.SavedAt.Format("2006-01-02 15:04:05"), state)
	}
}
