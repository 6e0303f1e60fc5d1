// Package docstore defines the shared document model used by the room store
// backends: JSON-shaped documents addressed by slash paths, batch operations
// with optional guards, and the field sentinels understood by updates.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when updating or reading a missing document.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when creating a document that already exists.
	ErrExists = errors.New("document already exists")
)

// Document is a JSON object. Values are restricted to what encoding/json
// produces when decoding into interface{}.
type Document map[string]any

// Snapshot is the full value of a document at one point in time.
type Snapshot struct {
	Path   string
	Exists bool
	Data   Document
}

// Decode unmarshals the snapshot data into out.
func (s Snapshot) Decode(out any) error {
	if !s.Exists {
		return ErrNotFound
	}
	return Decode(s.Data, out)
}

// CollectionSnapshot holds every document directly under a collection path,
// ordered by path.
type CollectionSnapshot struct {
	Path string
	Docs []Snapshot
}

// Increment adds n to a numeric field, treating a missing field as zero.
type Increment int64

// ArrayUnion appends the values missing from an array field.
type ArrayUnion []any

// Encode converts a struct (or map) into a Document.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// MustEncode is Encode for values known to be JSON objects.
func MustEncode(v any) Document {
	doc, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return doc
}

// Decode unmarshals a document into out.
func Decode(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Clone returns a deep copy of doc.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Clone(Document(t)))
	case Document:
		return map[string]any(Clone(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Parent returns the collection path that contains the document at path.
func Parent(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// ID returns the last segment of path.
func ID(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// SortSnapshots orders snapshots by path.
func SortSnapshots(docs []Snapshot) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
}

// normalize turns arbitrary Go values into their JSON form while keeping the
// field sentinels intact.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case Increment:
		return t, nil
	case ArrayUnion:
		out := make(ArrayUnion, len(t))
		for i := range t {
			n, err := normalize(t[i])
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case nil:
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize field: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize field: %w", err)
	}
	return out, nil
}

// resolve computes the new field value given its current value.
func resolve(current, next any) any {
	switch t := next.(type) {
	case Increment:
		return toFloat(current) + float64(t)
	case ArrayUnion:
		existing, _ := current.([]any)
		out := append([]any(nil), existing...)
		for _, candidate := range t {
			found := false
			for _, have := range out {
				if reflect.DeepEqual(have, candidate) {
					found = true
					break
				}
			}
			if !found {
				out = append(out, candidate)
			}
		}
		return out
	default:
		return next
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
