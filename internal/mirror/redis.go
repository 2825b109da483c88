package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisDocs implements DocStore on a Redis keyspace: one JSON document per
// key users/{userId}/notes/{noteId}, with changes published to a per-user
// pub/sub channel.
type RedisDocs struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisDocs creates a DocStore backed by the given Redis client.
func NewRedisDocs(client *redis.Client, logger *slog.Logger) *RedisDocs {
	return &RedisDocs{client: client, logger: logger}
}

// Verify *RedisDocs satisfies DocStore at compile time.
var _ DocStore = (*RedisDocs)(nil)

func docKey(userID, id string) string {
	return fmt.Sprintf("users/%s/notes/%s", userID, id)
}

func feedChannel(userID string) string {
	return fmt.Sprintf("users/%s/notes", userID)
}

// Put fully replaces the document and publishes it on the change feed.
func (r *RedisDocs) Put(ctx context.Context, userID string, doc Doc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redis docs: marshal %s: %w", doc.ID, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, docKey(userID, doc.ID), data, 0)
	pipe.Publish(ctx, feedChannel(userID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis docs: put %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes the document and publishes a tombstone.
func (r *RedisDocs) Delete(ctx context.Context, userID, id string) error {
	tomb, err := json.Marshal(Doc{ID: id, Deleted: true})
	if err != nil {
		return fmt.Errorf("redis docs: marshal tombstone %s: %w", id, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, docKey(userID, id))
	pipe.Publish(ctx, feedChannel(userID), tomb)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis docs: delete %s: %w", id, err)
	}
	return nil
}

// Snapshots subscribes to the change feed, then scans the current keyspace
// for the initial batch. Subscribing first means a write landing between the
// two is delivered twice rather than missed; applying a document is
// idempotent, so duplicates are harmless.
func (r *RedisDocs) Snapshots(ctx context.Context, userID string) (<-chan []Doc, error) {
	pubsub := r.client.Subscribe(ctx, feedChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis docs: subscribe: %w", err)
	}

	out := make(chan []Doc, 8)
	go func() {
		defer close(out)
		defer pubsub.Close()

		initial, err := r.scanAll(ctx, userID)
		if err != nil {
			r.logger.Warn("redis docs: initial scan failed", slog.String("error", err.Error()))
			initial = nil
		}
		select {
		case out <- initial:
		case <-ctx.Done():
			return
		}

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var d Doc
				if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
					r.logger.Warn("redis docs: bad feed payload", slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- []Doc{d}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// scanAll collects every document currently stored for the user.
func (r *RedisDocs) scanAll(ctx context.Context, userID string) ([]Doc, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, docKey(userID, "*"), 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}

	docs := make([]Doc, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // key expired between scan and mget
		}
		var d Doc
		if err := json.Unmarshal([]byte(s), &d); err != nil {
			r.logger.Warn("redis docs: bad document", slog.String("key", keys[i]), slog.String("error", err.Error()))
			continue
		}
		docs = append(docs, d)
	}
	return docs, nil
}
