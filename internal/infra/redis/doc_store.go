package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"family-quiz-service/internal/docstore"
	"family-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const batchAttempts = 10

// DocStore implements app.RoomStore on Redis so that clients connected to
// different service instances share rooms.
//
// Layout:
//
//	doc:{path}        JSON document
//	col:{collection}  SET of document paths in the collection
//
// Every committed batch publishes to docstore:doc:{path} and
// docstore:col:{collection}; watchers reload the full snapshot on each message.
// Keys expire ttl after their last write so abandoned rooms disappear.
type DocStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDocStore(client *redis.Client, ttl time.Duration) *DocStore {
	return &DocStore{client: client, ttl: ttl}
}

func (s *DocStore) Ping(ctx context.Context) error {
	return translate(s.client.Ping(ctx).Err())
}

func (s *DocStore) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	raw, err := s.client.Get(ctx, docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return docstore.Snapshot{Path: path}, nil
	}
	if err != nil {
		return docstore.Snapshot{}, translate(err)
	}
	return decodeSnapshot(path, raw)
}

func (s *DocStore) List(ctx context.Context, collection string) ([]docstore.Snapshot, error) {
	paths, err := s.client.SMembers(ctx, colKey(collection)).Result()
	if err != nil {
		return nil, translate(err)
	}
	if len(paths) == 0 {
		return []docstore.Snapshot{}, nil
	}
	keys := make([]string, len(paths))
	for i, path := range paths {
		keys[i] = docKey(path)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, translate(err)
	}

	docs := make([]docstore.Snapshot, 0, len(paths))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// expired or deleted since SMEMBERS
			continue
		}
		snap, err := decodeSnapshot(paths[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, snap)
	}
	docstore.SortSnapshots(docs)
	return docs, nil
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

// Batch applies ops atomically with optimistic locking: the touched keys are
// WATCHed, the batch is computed locally and committed in MULTI/EXEC. A
// concurrent write to any watched key retries the whole batch, guards included.
func (s *DocStore) Batch(ctx context.Context, ops ...docstore.Op) error {
	keys := make([]string, 0, len(ops))
	seen := map[string]struct{}{}
	for _, op := range ops {
		if _, ok := seen[op.Path]; ok {
			continue
		}
		seen[op.Path] = struct{}{}
		keys = append(keys, docKey(op.Path))
	}

	txf := func(tx *redis.Tx) error {
		state, err := s.load(ctx, tx, ops)
		if err != nil {
			return err
		}
		touched, err := docstore.ApplyBatch(state, ops)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.commit(ctx, pipe, state, touched)
		})
		return err
	}

	for attempt := 0; attempt < batchAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return translate(err)
	}
	return fmt.Errorf("batch of %d ops kept conflicting: %w", len(ops), domain.ErrUnavailable)
}

func (s *DocStore) load(ctx context.Context, tx *redis.Tx, ops []docstore.Op) (map[string]docstore.Snapshot, error) {
	state := make(map[string]docstore.Snapshot, len(ops))
	for _, op := range ops {
		if _, ok := state[op.Path]; ok {
			continue
		}
		raw, err := tx.Get(ctx, docKey(op.Path)).Bytes()
		if errors.Is(err, redis.Nil) {
			state[op.Path] = docstore.Snapshot{Path: op.Path}
			continue
		}
		if err != nil {
			return nil, err
		}
		snap, err := decodeSnapshot(op.Path, raw)
		if err != nil {
			return nil, err
		}
		state[op.Path] = snap
	}
	return state, nil
}

func (s *DocStore) commit(ctx context.Context, pipe redis.Pipeliner, state map[string]docstore.Snapshot, touched []string) error {
	collections := map[string]struct{}{}
	for _, path := range touched {
		snap := state[path]
		collection := docstore.Parent(path)
		collections[collection] = struct{}{}
		if !snap.Exists {
			pipe.Del(ctx, docKey(path))
			pipe.SRem(ctx, colKey(collection), path)
			continue
		}
		raw, err := json.Marshal(snap.Data)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		pipe.Set(ctx, docKey(path), raw, s.ttl)
		pipe.SAdd(ctx, colKey(collection), path)
		if s.ttl > 0 {
			pipe.Expire(ctx, colKey(collection), s.ttl)
		}
	}
	for _, path := range touched {
		pipe.Publish(ctx, docChannel(path), "changed")
	}
	for collection := range collections {
		pipe.Publish(ctx, colChannel(collection), "changed")
	}
	return nil
}

func (s *DocStore) Watch(ctx context.Context, path string) (<-chan docstore.Snapshot, func(), error) {
	return watch(ctx, s, docChannel(path), func(ctx context.Context) (docstore.Snapshot, error) {
		return s.Get(ctx, path)
	})
}

func (s *DocStore) WatchCollection(ctx context.Context, collection string) (<-chan docstore.CollectionSnapshot, func(), error) {
	return watch(ctx, s, colChannel(collection), func(ctx context.Context) (docstore.CollectionSnapshot, error) {
		docs, err := s.List(ctx, collection)
		if err != nil {
			return docstore.CollectionSnapshot{}, err
		}
		return docstore.CollectionSnapshot{Path: collection, Docs: docs}, nil
	})
}

// watch subscribes before the initial load so no change between the two is
// missed. The returned channel is closed when ctx ends, cancel is called, or
// the subscription breaks.
func watch[T any](parent context.Context, s *DocStore, channel string, load func(context.Context) (T, error)) (<-chan T, func(), error) {
	ctx, cancelCtx := context.WithCancel(parent)
	pubsub := s.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, nil, translate(err)
	}

	out := make(chan T, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			value, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("docstore watch %s: reload failed: %v", channel, err)
			} else {
				sendLatest(out, value)
			}

			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelCtx()
			<-done
		})
	}
	return out, cancel, nil
}

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

func decodeSnapshot(path string, raw []byte) (docstore.Snapshot, error) {
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return docstore.Snapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return docstore.Snapshot{Path: path, Exists: true, Data: doc}, nil
}

// translate maps Redis failures onto the store-level error kinds. Errors that
// did not come from Redis, such as guard failures, pass through unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "NOPERM"):
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "WRONGPASS"):
		return fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	var netErr net.Error
	if errors.Is(err, redis.ErrClosed) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return err
}

func docKey(path string) string {
	return "doc:" + path
}

func colKey(collection string) string {
	return "col:" + collection
}

func docChannel(path string) string {
	return "docstore:doc:" + path
}

func colChannel(collection string) string {
	return "docstore:col:" + collection
}
