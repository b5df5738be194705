package review

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Layout selects how a workspace root stores its threads.
type Layout string

const (
	// LayoutSplit stores open threads in unresolved.json and closed ones in resolved.json.
	LayoutSplit Layout = "split"
	// LayoutLegacy stores every thread in a single review.json.
	LayoutLegacy Layout = "legacy"
)

// IsValid reports whether l is a known layout.
func (l Layout) IsValid() bool {
	return l == LayoutSplit || l == LayoutLegacy
}

// ListKind identifies one of the two thread partitions.
type ListKind int

const (
	ListUnresolved ListKind = iota
	ListResolved
)

func (k ListKind) String() string {
	if k == ListResolved {
		return "resolved"
	}
	return "unresolved"
}

// MarshalText encodes the kind by name.
func (k ListKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind written by MarshalText.
func (k *ListKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unresolved":
		*k = ListUnresolved
	case "resolved":
		*k = ListResolved
	default:
		return fmt.Errorf("unknown list kind %q", text)
	}
	return nil
}

// Owner is the persisted author of a comment. The oldest files store it as a
// bare name string; both forms decode.
type Owner Identity

// MarshalJSON writes iconPath as null when no avatar is known.
func (o Owner) MarshalJSON() ([]byte, error) {
	var icon *string
	if o.IconPath != "" {
		icon = &o.IconPath
	}
	return json.Marshal(struct {
		Name     string  `json:"name"`
		IconPath *string `json:"iconPath"`
	}{Name: o.Name, IconPath: icon})
}

// UnmarshalJSON accepts either {"name": ..., "iconPath": ...} or "name".
func (o *Owner) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid owner: %s", data)
	}

	res := gjson.ParseBytes(data)
	switch {
	case res.Type == gjson.String:
		*o = Owner{Name: res.String()}
	case res.IsObject():
		*o = Owner{
			Name:     res.Get("name").String(),
			IconPath: res.Get("iconPath").String(),
		}
	case res.Type == gjson.Null:
		*o = Owner{}
	default:
		return fmt.Errorf("invalid owner: %s", data)
	}
	return nil
}

// CommentRecord is the persisted form of a comment: owner and text only.
type CommentRecord struct {
	Owner Owner  `json:"owner"`
	Text  string `json:"text"`
}

// ThreadRecord is the persisted form of a thread.
type ThreadRecord struct {
	ID       string          `json:"id,omitempty"`
	File     string          `json:"file"`
	Range    Range           `json:"range"`
	Comments []CommentRecord `json:"comments"`
}

// Matches reports whether the record is anchored at (file, rng).
func (tr ThreadRecord) Matches(file string, rng Range) bool {
	return tr.File == file && tr.Range == rng
}

// ThreadList is the root object of every review file.
type ThreadList struct {
	Threads []ThreadRecord `json:"threads"`
}

// Record is the review state of one workspace root. In the legacy layout
// only Unresolved is used.
type Record struct {
	Root       string
	Layout     Layout
	Unresolved ThreadList
	Resolved   ThreadList

	dirtyUnresolved bool
	dirtyResolved   bool
}

// NewRecord returns an empty record for root.
func NewRecord(root string, layout Layout) *Record {
	return &Record{
		Root:       root,
		Layout:     layout,
		Unresolved: ThreadList{Threads: []ThreadRecord{}},
		Resolved:   ThreadList{Threads: []ThreadRecord{}},
	}
}

// legacyIDSpace namespaces the IDs derived for threads stored without one.
var legacyIDSpace = uuid.MustParse("6f1f7d52-3c1e-4b8a-9a55-2e0d3c8b7a41")

// EnsureIDs assigns an ID to every thread read from a file that predates
// stable identifiers. The ID is derived from the root, the list, the anchor
// and the entry's position among entries sharing that anchor, so every load
// of the same file yields the same IDs until they are written back. Touched
// lists are marked dirty.
func (r *Record) EnsureIDs() {
	if ensureIDs(r.Root, ListUnresolved, r.Unresolved.Threads) {
		r.dirtyUnresolved = true
	}
	if ensureIDs(r.Root, ListResolved, r.Resolved.Threads) {
		r.dirtyResolved = true
	}
}

func ensureIDs(root string, kind ListKind, threads []ThreadRecord) bool {
	seen := make(map[string]int)
	changed := false

	for i := range threads {
		key := threads[i].Key()
		n := seen[key]
		seen[key] = n + 1

		if threads[i].ID != "" {
			continue
		}
		name := fmt.Sprintf("%s\x00%s\x00%s#%d", root, kind, key, n)
		threads[i].ID = uuid.NewSHA1(legacyIDSpace, []byte(name)).String()
		changed = true
	}
	return changed
}

// FindOrCreate returns the active-list entry anchored at (file, rng),
// appending an empty one if none matches. The pointer is valid until the
// next mutation of the record.
func (r *Record) FindOrCreate(file string, rng Range) *ThreadRecord {
	for i := range r.Unresolved.Threads {
		if r.Unresolved.Threads[i].Matches(file, rng) {
			return &r.Unresolved.Threads[i]
		}
	}

	r.Unresolved.Threads = append(r.Unresolved.Threads, ThreadRecord{
		ID:       uuid.NewString(),
		File:     file,
		Range:    rng,
		Comments: []CommentRecord{},
	})
	r.dirtyUnresolved = true
	return &r.Unresolved.Threads[len(r.Unresolved.Threads)-1]
}

// FindByID looks up a thread in either list.
func (r *Record) FindByID(id string) (ThreadRecord, ListKind, bool) {
	for _, tr := range r.Unresolved.Threads {
		if tr.ID == id {
			return tr, ListUnresolved, true
		}
	}
	for _, tr := range r.Resolved.Threads {
		if tr.ID == id {
			return tr, ListResolved, true
		}
	}
	return ThreadRecord{}, ListUnresolved, false
}

// List returns the threads of one partition.
func (r *Record) List(kind ListKind) []ThreadRecord {
	if kind == ListResolved {
		return r.Resolved.Threads
	}
	return r.Unresolved.Threads
}

// UpsertComments replaces the persisted comments of t with a snapshot of its
// current comments, creating the entry if needed.
func (r *Record) UpsertComments(t *Thread) {
	r.upsert(t, t.Snapshot())
}

func (r *Record) upsert(t *Thread, comments []CommentRecord) {
	idx := r.locate(t)
	if idx < 0 {
		r.Unresolved.Threads = append(r.Unresolved.Threads, ThreadRecord{
			ID:    t.ID,
			File:  t.File,
			Range: t.Range,
		})
		idx = len(r.Unresolved.Threads) - 1
	}

	r.Unresolved.Threads[idx].Comments = comments
	r.dirtyUnresolved = true
}

// Resolve moves the entry for t out of the unresolved list. The split layout
// keeps it, unchanged, in the resolved list; the legacy layout drops it.
// It reports whether an entry was found.
func (r *Record) Resolve(t *Thread) bool {
	idx := r.locate(t)
	if idx < 0 {
		return false
	}

	entry := r.Unresolved.Threads[idx]
	r.Unresolved.Threads = slices.Delete(r.Unresolved.Threads, idx, idx+1)
	r.dirtyUnresolved = true

	if r.Layout == LayoutSplit {
		r.Resolved.Threads = append(r.Resolved.Threads, entry)
		r.dirtyResolved = true
	}
	return true
}

// Archive resolves a thread whose comments were all deleted, keeping the full
// conversation in the resolved entry.
func (r *Record) Archive(t *Thread) bool {
	if r.locate(t) < 0 {
		return false
	}
	r.upsert(t, t.HistorySnapshot())
	return r.Resolve(t)
}

// locate finds the unresolved entry for t: by ID first, then by anchor for
// entries that carry no ID.
func (r *Record) locate(t *Thread) int {
	idx := slices.IndexFunc(r.Unresolved.Threads, func(tr ThreadRecord) bool {
		return tr.ID != "" && tr.ID == t.ID
	})
	if idx >= 0 {
		return idx
	}

	idx = slices.IndexFunc(r.Unresolved.Threads, func(tr ThreadRecord) bool {
		return tr.ID == "" && tr.Matches(t.File, t.Range)
	})
	if idx >= 0 {
		r.Unresolved.Threads[idx].ID = t.ID
	}
	return idx
}

// Dirty reports which lists changed since the last ClearDirty.
func (r *Record) Dirty() (unresolved, resolved bool) {
	return r.dirtyUnresolved, r.dirtyResolved
}

// ClearDirty marks both lists as persisted.
func (r *Record) ClearDirty() {
	r.dirtyUnresolved = false
	r.dirtyResolved = false
}

// RestoreDirty marks lists whose write did not complete as dirty again.
func (r *Record) RestoreDirty(unresolved, resolved bool) {
	r.dirtyUnresolved = r.dirtyUnresolved || unresolved
	r.dirtyResolved = r.dirtyResolved || resolved
}

// MarkDirty forces both lists to be written on the next flush.
func (r *Record) MarkDirty() {
	r.dirtyUnresolved = true
	r.dirtyResolved = r.Layout == LayoutSplit
}

// Key returns the (file, range) anchor for display and lookup.
func (tr ThreadRecord) Key() string {
	return tr.File + "@" + tr.Range.String()
}
