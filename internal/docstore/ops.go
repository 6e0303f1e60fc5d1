package docstore

import (
	"fmt"
	"strings"
)

// Kind selects what an Op does to its document.
type Kind int

const (
	// KindCreate writes a new document and fails with ErrExists if present.
	KindCreate Kind = iota + 1
	// KindSet replaces the document.
	KindSet
	// KindMerge writes the given top-level fields, keeping the others.
	KindMerge
	// KindUpdate writes dotted field paths and fails with ErrNotFound if missing.
	KindUpdate
	// KindDelete removes the document.
	KindDelete
	// KindCheck writes nothing. It exists to run a guard inside a batch.
	KindCheck
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindSet:
		return "set"
	case KindMerge:
		return "merge"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindCheck:
		return "check"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Guard inspects the current document before an op applies. A non-nil error
// aborts the whole batch and is returned to the caller unchanged.
type Guard func(current Snapshot) error

// Op is one step of an atomic batch.
type Op struct {
	Kind  Kind
	Path  string
	Data  Document
	Guard Guard
}

// Create returns a create op.
func Create(path string, data Document) Op {
	return Op{Kind: KindCreate, Path: path, Data: data}
}

// Set returns a replace op.
func Set(path string, data Document) Op {
	return Op{Kind: KindSet, Path: path, Data: data}
}

// Merge returns a top-level merge op.
func Merge(path string, data Document) Op {
	return Op{Kind: KindMerge, Path: path, Data: data}
}

// Update returns an op writing dotted field paths such as "answers.3.scored".
func Update(path string, fields Document) Op {
	return Op{Kind: KindUpdate, Path: path, Data: fields}
}

// Delete returns a delete op.
func Delete(path string) Op {
	return Op{Kind: KindDelete, Path: path}
}

// Check returns a guard-only op.
func Check(path string, guard Guard) Op {
	return Op{Kind: KindCheck, Path: path, Guard: guard}
}

// When attaches a guard to the op.
func (o Op) When(guard Guard) Op {
	o.Guard = guard
	return o
}

// Writes reports whether the op changes stored state.
func (o Op) Writes() bool {
	return o.Kind != KindCheck
}

// Apply runs op against current and returns the resulting snapshot. It is the
// single definition of write semantics shared by every backend.
func Apply(current Snapshot, op Op) (Snapshot, error) {
	if op.Path == "" {
		return current, fmt.Errorf("%s: empty path", op.Kind)
	}
	if op.Guard != nil {
		if err := op.Guard(current); err != nil {
			return current, err
		}
	}

	switch op.Kind {
	case KindCheck:
		return current, nil
	case KindDelete:
		return Snapshot{Path: op.Path}, nil
	case KindCreate:
		if current.Exists {
			return current, fmt.Errorf("create %s: %w", op.Path, ErrExists)
		}
		return replace(op)
	case KindSet:
		return replace(op)
	case KindMerge:
		base := Clone(current.Data)
		if !current.Exists || base == nil {
			base = Document{}
		}
		for key, value := range op.Data {
			n, err := normalize(value)
			if err != nil {
				return current, err
			}
			base[key] = resolve(base[key], n)
		}
		return Snapshot{Path: op.Path, Exists: true, Data: base}, nil
	case KindUpdate:
		if !current.Exists {
			return current, fmt.Errorf("update %s: %w", op.Path, ErrNotFound)
		}
		base := Clone(current.Data)
		if base == nil {
			base = Document{}
		}
		for key, value := range op.Data {
			n, err := normalize(value)
			if err != nil {
				return current, err
			}
			setField(base, strings.Split(key, "."), n)
		}
		return Snapshot{Path: op.Path, Exists: true, Data: base}, nil
	default:
		return current, fmt.Errorf("unknown op kind %d", int(op.Kind))
	}
}

func replace(op Op) (Snapshot, error) {
	doc := Document{}
	for key, value := range op.Data {
		n, err := normalize(value)
		if err != nil {
			return Snapshot{}, err
		}
		doc[key] = resolve(nil, n)
	}
	return Snapshot{Path: op.Path, Exists: true, Data: doc}, nil
}

func setField(doc map[string]any, parts []string, value any) {
	for len(parts) > 1 {
		next, ok := doc[parts[0]].(map[string]any)
		if !ok {
			next = map[string]any{}
			doc[parts[0]] = next
		}
		doc = next
		parts = parts[1:]
	}
	doc[parts[0]] = resolve(doc[parts[0]], value)
}

// ApplyBatch applies ops in order against the snapshots in state, which maps
// path to current snapshot and is updated in place only when every op succeeds.
// It returns the set of paths written.
func ApplyBatch(state map[string]Snapshot, ops []Op) ([]string, error) {
	staged := make(map[string]Snapshot, len(ops))
	var touched []string
	for _, op := range ops {
		current, ok := staged[op.Path]
		if !ok {
			current = state[op.Path]
			current.Path = op.Path
		}
		next, err := Apply(current, op)
		if err != nil {
			return nil, err
		}
		if !op.Writes() {
			continue
		}
		if _, seen := staged[op.Path]; !seen {
			touched = append(touched, op.Path)
		}
		staged[op.Path] = next
	}
	for path, snap := range staged {
		state[path] = snap
	}
	return touched, nil
}
