package memory

import (
	"context"
	"sync"

	"family-quiz-service/internal/docstore"
)

// DocStore is an in-memory implementation of app.RoomStore. Every client of a
// process shares one instance, which gives single-node deployments and tests
// the same realtime semantics as the Redis store.
type DocStore struct {
	mu          sync.Mutex
	docs        map[string]docstore.Document
	watchers    map[string]map[chan docstore.Snapshot]struct{}
	colWatchers map[string]map[chan docstore.CollectionSnapshot]struct{}
}

func NewDocStore() *DocStore {
	return &DocStore{
		docs:        make(map[string]docstore.Document),
		watchers:    make(map[string]map[chan docstore.Snapshot]struct{}),
		colWatchers: make(map[string]map[chan docstore.CollectionSnapshot]struct{}),
	}
}

func (s *DocStore) Ping(context.Context) error {
	return nil
}

func (s *DocStore) Get(_ context.Context, path string) (docstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(path), nil
}

func (s *DocStore) List(_ context.Context, collection string) ([]docstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectionLocked(collection).Docs, nil
}

func (s *DocStore) Set(ctx context.Context, path string, data docstore.Document, merge bool) error {
	if merge {
		return s.Batch(ctx, docstore.Merge(path, data))
	}
	return s.Batch(ctx, docstore.Set(path, data))
}

func (s *DocStore) Update(ctx context.Context, path string, fields docstore.Document) error {
	return s.Batch(ctx, docstore.Update(path, fields))
}

// Batch applies ops atomically. Watchers see the result only after every op
// has been applied.
func (s *DocStore) Batch(ctx context.Context, ops ...docstore.Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state := make(map[string]docstore.Snapshot, len(ops))
	for _, op := range ops {
		state[op.Path] = s.snapshotLocked(op.Path)
	}
	touched, err := docstore.ApplyBatch(state, ops)
	if err != nil {
		return err
	}
	for _, path := range touched {
		snap := state[path]
		if snap.Exists {
			s.docs[path] = snap.Data
		} else {
			delete(s.docs, path)
		}
	}
	s.notifyLocked(touched)
	return nil
}

func (s *DocStore) Watch(ctx context.Context, path string) (<-chan docstore.Snapshot, func(), error) {
	ch := make(chan docstore.Snapshot, 1)

	s.mu.Lock()
	if s.watchers[path] == nil {
		s.watchers[path] = make(map[chan docstore.Snapshot]struct{})
	}
	s.watchers[path][ch] = struct{}{}
	ch <- s.snapshotLocked(path)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers[path], ch)
			if len(s.watchers[path]) == 0 {
				delete(s.watchers, path)
			}
			close(ch)
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() { stop(); cancel() }, nil
}

func (s *DocStore) WatchCollection(ctx context.Context, collection string) (<-chan docstore.CollectionSnapshot, func(), error) {
	ch := make(chan docstore.CollectionSnapshot, 1)

	s.mu.Lock()
	if s.colWatchers[collection] == nil {
		s.colWatchers[collection] = make(map[chan docstore.CollectionSnapshot]struct{})
	}
	s.colWatchers[collection][ch] = struct{}{}
	ch <- s.collectionLocked(collection)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.colWatchers[collection], ch)
			if len(s.colWatchers[collection]) == 0 {
				delete(s.colWatchers, collection)
			}
			close(ch)
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() { stop(); cancel() }, nil
}

func (s *DocStore) snapshotLocked(path string) docstore.Snapshot {
	doc, ok := s.docs[path]
	if !ok {
		return docstore.Snapshot{Path: path}
	}
	return docstore.Snapshot{Path: path, Exists: true, Data: docstore.Clone(doc)}
}

func (s *DocStore) collectionLocked(collection string) docstore.CollectionSnapshot {
	snap := docstore.CollectionSnapshot{Path: collection, Docs: []docstore.Snapshot{}}
	for path, doc := range s.docs {
		if docstore.Parent(path) != collection {
			continue
		}
		snap.Docs = append(snap.Docs, docstore.Snapshot{Path: path, Exists: true, Data: docstore.Clone(doc)})
	}
	docstore.SortSnapshots(snap.Docs)
	return snap
}

func (s *DocStore) notifyLocked(paths []string) {
	collections := map[string]struct{}{}
	for _, path := range paths {
		if watchers := s.watchers[path]; len(watchers) > 0 {
			snap := s.snapshotLocked(path)
			for ch := range watchers {
				sendLatest(ch, snap)
			}
		}
		collections[docstore.Parent(path)] = struct{}{}
	}
	for collection := range collections {
		watchers := s.colWatchers[collection]
		if len(watchers) == 0 {
			continue
		}
		snap := s.collectionLocked(collection)
		for ch := range watchers {
			sendLatest(ch, snap)
		}
	}
}

// sendLatest replaces any undelivered value so the reader always gets the
// newest snapshot without blocking the writer.
func sendLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
