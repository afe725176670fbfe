package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Hossein925/f-maharat/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps the snapshot in Redis hashes.
//
//	<prefix>hospitals        hash   id -> hospital JSON
//	<prefix>hospitals:order  list   ids in snapshot order
//	<prefix>files            hash   locator -> file JSON
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store using keys under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) hospitalsKey() string  { return s.prefix + "hospitals" }
func (s *RedisStore) orderKey() string      { return s.prefix + "hospitals:order" }
func (s *RedisStore) filesKey() string      { return s.prefix + "files" }
func (s *RedisStore) tombstonesKey() string { return s.prefix + "files:tombstones" }

// ReplaceHospitals swaps the stored collection inside MULTI/EXEC.
func (s *RedisStore) ReplaceHospitals(ctx context.Context, hospitals []domain.Hospital) error {
	fields := make([]any, 0, len(hospitals)*2)
	ids := make([]any, 0, len(hospitals))
	for _, h := range hospitals {
		payload, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("encode hospital %s: %w", h.ID, err)
		}
		fields = append(fields, h.ID, payload)
		ids = append(ids, h.ID)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.hospitalsKey(), s.orderKey())
		if len(hospitals) > 0 {
			pipe.HSet(ctx, s.hospitalsKey(), fields...)
			pipe.RPush(ctx, s.orderKey(), ids...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace hospitals: %w", err)
	}
	return nil
}

// LoadHospitals returns the stored collection in snapshot order.
func (s *RedisStore) LoadHospitals(ctx context.Context) ([]domain.Hospital, error) {
	ids, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load hospital order: %w", err)
	}
	hospitals := make([]domain.Hospital, 0, len(ids))
	if len(ids) == 0 {
		return hospitals, nil
	}

	values, err := s.client.HMGet(ctx, s.hospitalsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load hospitals: %w", err)
	}
	seen := make(map[string]bool, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok || seen[ids[i]] {
			continue
		}
		seen[ids[i]] = true
		var h domain.Hospital
		if err := json.Unmarshal([]byte(raw), &h); err != nil {
			return nil, fmt.Errorf("decode hospital %s: %w", ids[i], err)
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, nil
}

// GetFile returns the cached file or ErrMiss.
func (s *RedisStore) GetFile(ctx context.Context, locator string) (File, error) {
	raw, err := s.client.HGet(ctx, s.filesKey(), locator).Bytes()
	if errors.Is(err, redis.Nil) {
		return File{}, ErrMiss
	}
	if err != nil {
		return File{}, fmt.Errorf("get file: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("decode file: %w", err)
	}
	return f, nil
}

// PutFile stores or replaces a file.
func (s *RedisStore) PutFile(ctx context.Context, file File) error {
	raw, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode file: %w", err)
	}
	if err := s.client.HSet(ctx, s.filesKey(), file.Locator, raw).Err(); err != nil {
		return fmt.Errorf("put file: %w", err)
	}
	return nil
}

// DeleteFile removes a file.
func (s *RedisStore) DeleteFile(ctx context.Context, locator string) error {
	if err := s.client.HDel(ctx, s.filesKey(), locator).Err(); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// ListFiles returns all cached files ordered by locator.
func (s *RedisStore) ListFiles(ctx context.Context) ([]File, error) {
	all, err := s.client.HGetAll(ctx, s.filesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	files := make([]File, 0, len(all))
	for _, raw := range all {
		var f File
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("decode file: %w", err)
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Locator < files[j].Locator })
	return files, nil
}

// ClearFiles removes every cached file.
func (s *RedisStore) ClearFiles(ctx context.Context) error {
	if err := s.client.Del(ctx, s.filesKey()).Err(); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}
	return nil
}

// PutTombstone marks locator as deleted.
func (s *RedisStore) PutTombstone(ctx context.Context, locator string) error {
	if err := s.client.SAdd(ctx, s.tombstonesKey(), locator).Err(); err != nil {
		return fmt.Errorf("put tombstone: %w", err)
	}
	return nil
}

// DeleteTombstone clears the mark on locator.
func (s *RedisStore) DeleteTombstone(ctx context.Context, locator string) error {
	if err := s.client.SRem(ctx, s.tombstonesKey(), locator).Err(); err != nil {
		return fmt.Errorf("delete tombstone: %w", err)
	}
	return nil
}

// HasTombstone reports whether locator is marked as deleted.
func (s *RedisStore) HasTombstone(ctx context.Context, locator string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.tombstonesKey(), locator).Result()
	if err != nil {
		return false, fmt.Errorf("get tombstone: %w", err)
	}
	return ok, nil
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStore) Close() error { return nil }
