package changes

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDocsDir is the workspace subdirectory holding engine state.
	WorkspaceDocsDir = "workspace-docs"
	// ChangeRequestsDir is the subdirectory under workspace-docs/ where CRs live.
	ChangeRequestsDir = "change-requests"
	// ChangeRequestExt is the extension of a CR file.
	ChangeRequestExt = ".md"

	frontmatterDelim = "---"
)

// Store defines the persistence interface for change requests.
// Abstracted for testability (DIP).
type Store interface {
	Create(workspaceRoot, originDoc, description string, changedIDs []string) (*ChangeRequest, error)
	Load(workspaceRoot, id string) (*ChangeRequest, error)
	Save(workspaceRoot string, cr *ChangeRequest) error
	Transition(workspaceRoot, id string, target Status, reason string) (*ChangeRequest, error)
	List(workspaceRoot string) ([]ChangeRequest, error)
}

// FileStore implements Store with one markdown file per CR: YAML
// frontmatter carrying the record, followed by a human-readable body.
type FileStore struct{}

// NewFileStore creates a filesystem-backed change request store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// WorkspaceDocsPath returns <root>/workspace-docs.
func WorkspaceDocsPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, WorkspaceDocsDir)
}

// ChangeRequestsPath returns <root>/workspace-docs/change-requests.
func ChangeRequestsPath(workspaceRoot string) string {
	return filepath.Join(WorkspaceDocsPath(workspaceRoot), ChangeRequestsDir)
}

// ChangeRequestPath returns the file path of one CR.
func ChangeRequestPath(workspaceRoot, id string) string {
	return filepath.Join(ChangeRequestsPath(workspaceRoot), id+ChangeRequestExt)
}

// Create allocates the next id for today and persists a new INITIATED
// record. If another writer took the id in the meantime, the next free
// sequence is used.
func (fs *FileStore) Create(workspaceRoot, originDoc, description string, changedIDs []string) (*ChangeRequest, error) {
	if err := os.MkdirAll(ChangeRequestsPath(workspaceRoot), 0o755); err != nil {
		return nil, fmt.Errorf("creating change request directory: %w", err)
	}

	existing, err := fs.listIDs(workspaceRoot)
	if err != nil {
		return nil, err
	}

	for {
		id, err := NextID(existing, timeNow())
		if err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(ChangeRequestPath(workspaceRoot, id)); statErr == nil {
			existing = append(existing, id)
			continue
		}
		cr := New(id, originDoc, description, changedIDs)
		if err := fs.write(workspaceRoot, cr); err != nil {
			return nil, err
		}
		return cr, nil
	}
}

// Load reads a CR by id.
func (fs *FileStore) Load(workspaceRoot, id string) (*ChangeRequest, error) {
	if err := ValidateID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	data, err := os.ReadFile(ChangeRequestPath(workspaceRoot, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading change request %s: %w", id, err)
	}

	cr, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	if cr.ID != id {
		return nil, fmt.Errorf("%w: %s declares id %q", ErrCorrupt, id, cr.ID)
	}
	return cr, nil
}

// Save overwrites the stored record with cr as given. Timestamps are the
// caller's responsibility.
func (fs *FileStore) Save(workspaceRoot string, cr *ChangeRequest) error {
	if err := ValidateID(cr.ID); err != nil {
		return err
	}
	return fs.write(workspaceRoot, cr)
}

// Transition loads a CR, applies the transition and persists it. An
// invalid transition writes nothing.
func (fs *FileStore) Transition(workspaceRoot, id string, target Status, reason string) (*ChangeRequest, error) {
	cr, err := fs.Load(workspaceRoot, id)
	if err != nil {
		return nil, err
	}
	if err := Transition(cr, target, reason); err != nil {
		return nil, err
	}
	if err := fs.write(workspaceRoot, cr); err != nil {
		return nil, err
	}
	return cr, nil
}

// List returns every readable CR sorted by id. Unreadable files are skipped.
func (fs *FileStore) List(workspaceRoot string) ([]ChangeRequest, error) {
	ids, err := fs.listIDs(workspaceRoot)
	if err != nil {
		return nil, err
	}
	result := []ChangeRequest{}
	for _, id := range ids {
		cr, err := fs.Load(workspaceRoot, id)
		if err != nil {
			continue
		}
		result = append(result, *cr)
	}
	return result, nil
}

// listIDs returns the ids of CR files on disk, sorted.
func (fs *FileStore) listIDs(workspaceRoot string) ([]string, error) {
	entries, err := os.ReadDir(ChangeRequestsPath(workspaceRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading change request directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ChangeRequestExt) {
			continue
		}
		id := strings.TrimSuffix(name, ChangeRequestExt)
		if ValidateID(id) == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// write encodes cr and replaces its file atomically.
func (fs *FileStore) write(workspaceRoot string, cr *ChangeRequest) error {
	data, err := Encode(cr)
	if err != nil {
		return err
	}

	dir := ChangeRequestsPath(workspaceRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating change request directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+cr.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing change request %s: %w", cr.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing change request %s: %w", cr.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing change request %s: %w", cr.ID, err)
	}
	if err := os.Rename(tmpName, ChangeRequestPath(workspaceRoot, cr.ID)); err != nil {
		return fmt.Errorf("replacing change request %s: %w", cr.ID, err)
	}
	return nil
}

// --- Encoding ---

// Encode renders a CR as YAML frontmatter plus a markdown body.
func Encode(cr *ChangeRequest) ([]byte, error) {
	rec := *cr
	rec.normalize()

	meta, err := yaml.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling change request %s: %w", cr.ID, err)
	}

	var b bytes.Buffer
	b.WriteString(frontmatterDelim + "\n")
	b.Write(meta)
	b.WriteString(frontmatterDelim + "\n\n")
	b.WriteString(renderBody(&rec))
	return b.Bytes(), nil
}

// Decode parses a CR file. Only the frontmatter is read; the body is a
// rendering of the same data.
func Decode(data []byte) (*ChangeRequest, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, frontmatterDelim+"\n") {
		return nil, fmt.Errorf("%w: missing frontmatter", ErrCorrupt)
	}
	rest := text[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	if end < 0 {
		if !strings.HasSuffix(rest, "\n"+frontmatterDelim) {
			return nil, fmt.Errorf("%w: unterminated frontmatter", ErrCorrupt)
		}
		end = len(rest) - len(frontmatterDelim) - 1
	}

	var cr ChangeRequest
	if err := yaml.Unmarshal([]byte(rest[:end+1]), &cr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := ValidateID(cr.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := ValidateStatus(cr.Status); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := cr.validateSteps(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	cr.normalize()
	return &cr, nil
}

// IsNotFound reports whether err means the CR does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func renderBody(cr *ChangeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", cr.ID)
	fmt.Fprintf(&b, "**Status:** %s | **Origin:** %s\n\n", cr.Status, cr.OriginDoc)
	b.WriteString("## Description\n\n")
	b.WriteString(strings.TrimSpace(cr.Description))
	b.WriteString("\n\n## Changed IDs\n\n")
	if len(cr.ChangedIDs) == 0 {
		b.WriteString("_none_\n")
	}
	for _, id := range cr.ChangedIDs {
		fmt.Fprintf(&b, "- %s\n", id)
	}

	if len(cr.PropagationSteps) > 0 {
		b.WriteString("\n## Propagation\n\n")
		b.WriteString("| # | Document | Direction | Status |\n")
		b.WriteString("|---|----------|-----------|--------|\n")
		for i, s := range cr.PropagationSteps {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, s.DocType, s.Direction, s.Status)
		}
	}

	if len(cr.ConflictWarnings) > 0 {
		b.WriteString("\n## Conflict Warnings\n\n")
		for _, w := range cr.ConflictWarnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	b.WriteString("\n## History\n\n")
	for _, h := range cr.History {
		if h.Reason != "" {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", h.Entered, h.Status, h.Reason)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", h.Entered, h.Status)
		}
	}
	return b.String()
}
