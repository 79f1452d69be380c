package changeset

import (
	"encoding/json"
	"sort"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/wI2L/jsondiff"
)

var ErrNotObject = errors.New("form state must be a JSON object")

// Change is the difference between two form states.
// Fields are the top-level fields that changed; Values holds their edited values (nil if removed),
// ready to be sent as a partial update.
type Change struct {
	Patch  jsondiff.Patch         `json:"patch"`
	Fields []string               `json:"fields"`
	Values map[string]interface{} `json:"values"`
}

func (c Change) IsEmpty() bool {
	return len(c.Patch) == 0
}

// Session is the immutable base of one edit session: the record as loaded, or the form defaults.
type Session struct {
	base []byte
}

// NewSession snapshots `base`; later changes to `base` do not affect the session.
func NewSession(base interface{}) (Session, error) {
	b, _, err := toObject(base)
	if err != nil {
		return Session{}, errors.Wrap(err, "snapshotting base")
	}
	return Session{base: b}, nil
}

// Base returns a fresh copy of the session's base state.
func (s Session) Base() map[string]interface{} {
	var obj map[string]interface{}
	_ = json.Unmarshal(s.base, &obj)
	return obj
}

// Diff computes the changes from the session base to `edited`.
func (s Session) Diff(edited interface{}) (Change, error) {
	return Diff(json.RawMessage(s.base), edited)
}

// Diff computes the changes from `original` to `edited`. Both must encode to JSON objects.
func Diff(original, edited interface{}) (Change, error) {
	_, orig, err := toObject(original)
	if err != nil {
		return Change{}, errors.Wrap(err, "encoding original")
	}
	_, edit, err := toObject(edited)
	if err != nil {
		return Change{}, errors.Wrap(err, "encoding edited")
	}

	patch, err := jsondiff.Compare(orig, edit)
	if err != nil {
		return Change{}, errors.Wrap(err, "comparing states")
	}

	change := Change{Patch: patch, Fields: []string{}, Values: make(map[string]interface{})}
	seen := make(map[string]bool)
	for _, op := range patch {
		field := topLevelField(op.Path)
		if field == "" || seen[field] {
			continue
		}
		seen[field] = true
		change.Fields = append(change.Fields, field)
		change.Values[field] = edit[field]
	}
	sort.Strings(change.Fields)
	return change, nil
}

// Apply applies an RFC 6902 patch to `doc` and returns the patched object.
func Apply(doc interface{}, patch jsondiff.Patch) (map[string]interface{}, error) {
	docBytes, _, err := toObject(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encoding document")
	}
	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return nil, errors.Wrap(err, "encoding patch")
	}
	decoded, err := jsonpatch.DecodePatch(patchBytes)
	if err != nil {
		return nil, errors.Wrap(err, "decoding patch")
	}
	patched, err := decoded.Apply(docBytes)
	if err != nil {
		return nil, errors.Wrap(err, "applying patch")
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(patched, &obj); err != nil {
		return nil, errors.Wrap(err, "decoding patched document")
	}
	return obj, nil
}

// MergeSection merges `values` into `section` of `state` (RFC 7396) and returns the new state.
// A null value removes the field. An empty section merges at the root.
// `state` itself is left untouched.
func MergeSection(state interface{}, section string, values interface{}) (map[string]interface{}, error) {
	stateBytes, _, err := toObject(state)
	if err != nil {
		return nil, errors.Wrap(err, "encoding state")
	}

	var mergePatch interface{} = values
	if section != "" {
		mergePatch = map[string]interface{}{section: values}
	}
	patchBytes, err := json.Marshal(mergePatch)
	if err != nil {
		return nil, errors.Wrap(err, "encoding values")
	}

	merged, err := jsonpatch.MergePatch(stateBytes, patchBytes)
	if err != nil {
		return nil, errors.Wrap(err, "merging values")
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(merged, &obj); err != nil {
		return nil, errors.Wrap(err, "decoding merged state")
	}
	return obj, nil
}

// Unified renders a line diff of the two states, for audit logs and the CLI.
func Unified(original, edited interface{}) (string, error) {
	a, err := json.MarshalIndent(original, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding original")
	}
	b, err := json.MarshalIndent(edited, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding edited")
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a) + "\n"),
		B:        difflib.SplitLines(string(b) + "\n"),
		FromFile: "original",
		ToFile:   "edited",
		Context:  3,
	})
}

// toObject encodes `v` and decodes it back as a JSON object.
func toObject(v interface{}) ([]byte, map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		return nil, nil, ErrNotObject
	}
	return b, obj, nil
}

// topLevelField returns the first reference token of a JSON pointer ("/a~1b/c" -> "a/b").
func topLevelField(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if i := strings.IndexByte(pointer, '/'); i >= 0 {
		pointer = pointer[:i]
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(pointer)
}
