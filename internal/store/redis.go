package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/songhatch/api/internal/model"
)

// Key layout:
//
//	generation:<id>              JSON document
//	generation:task:<taskId>     generation id (matcher index)
//	generations:active           set of pending/processing generation ids
//	song:<id>                    JSON document
//	song:<id>:versions           set of version ids
//	songversion:<id>             JSON document
//	notification:<triple key>    JSON document (SETNX for idempotent create)
//	user:<id>:notifications      list of notification keys, newest first
//	artist:<id>                  JSON document
//	artist:<id>:followers        set of user ids
const notificationTTL = 90 * 24 * time.Hour

// NewRedisStore returns a Store backed by a Redis client.
func NewRedisStore(client *redis.Client) *Store {
	return &Store{
		Generations:   &redisGenerationStore{client},
		Songs:         &redisSongStore{client},
		Notifications: &redisNotificationStore{client},
		Artists:       &redisArtistStore{client},
	}
}

type redisGenerationStore struct {
	redis *redis.Client
}

func (s *redisGenerationStore) Get(ctx context.Context, id string) (*model.Generation, error) {
	var g model.Generation
	if err := getJSON(ctx, s.redis, "generation:"+id, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *redisGenerationStore) Save(ctx context.Context, g *model.Generation) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal generation: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, "generation:"+g.ID, data, 0)
	if g.ProviderTaskID != "" {
		pipe.Set(ctx, "generation:task:"+g.ProviderTaskID, g.ID, 0)
	}
	if g.Status.IsTerminal() {
		pipe.SRem(ctx, "generations:active", g.ID)
	} else {
		pipe.SAdd(ctx, "generations:active", g.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisGenerationStore) FindByTaskID(ctx context.Context, taskID string) (*model.Generation, error) {
	id, err := s.redis.Get(ctx, "generation:task:"+taskID).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *redisGenerationStore) FindActiveByConversionID(ctx context.Context, conversionID string) (*model.Generation, error) {
	ids, err := s.redis.SMembers(ctx, "generations:active").Result()
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		g, err := s.Get(ctx, id)
		if err == ErrNotFound {
			continue // stale index entry
		}
		if err != nil {
			return nil, err
		}
		if g.Status.IsTerminal() {
			continue
		}
		if g.Expects(conversionID) {
			return g, nil
		}
	}
	return nil, ErrNotFound
}

type redisSongStore struct {
	redis *redis.Client
}

func (s *redisSongStore) Get(ctx context.Context, id string) (*model.Song, error) {
	var song model.Song
	if err := getJSON(ctx, s.redis, "song:"+id, &song); err != nil {
		return nil, err
	}
	return &song, nil
}

func (s *redisSongStore) Save(ctx context.Context, song *model.Song) error {
	return setJSON(ctx, s.redis, "song:"+song.ID, song)
}

func (s *redisSongStore) ListVersions(ctx context.Context, songID string) ([]*model.SongVersion, error) {
	ids, err := s.redis.SMembers(ctx, "song:"+songID+":versions").Result()
	if err != nil {
		return nil, err
	}

	versions := make([]*model.SongVersion, 0, len(ids))
	for _, id := range ids {
		var v model.SongVersion
		if err := getJSON(ctx, s.redis, "songversion:"+id, &v); err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		versions = append(versions, &v)
	}
	sortVersions(versions)
	return versions, nil
}

func (s *redisSongStore) SaveVersion(ctx context.Context, v *model.SongVersion) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal version: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, "songversion:"+v.ID, data, 0)
	pipe.SAdd(ctx, "song:"+v.SongID+":versions", v.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// SetPrimaryVersion rewrites every version's isPrimary flag and the
// song's pointer in one transaction pipeline.
func (s *redisSongStore) SetPrimaryVersion(ctx context.Context, songID, versionID string) error {
	song, err := s.Get(ctx, songID)
	if err != nil {
		return err
	}

	versions, err := s.ListVersions(ctx, songID)
	if err != nil {
		return err
	}

	found := false
	pipe := s.redis.TxPipeline()
	for _, v := range versions {
		isPrimary := v.ID == versionID
		if isPrimary {
			found = true
		}
		if v.IsPrimary == isPrimary {
			continue
		}
		v.IsPrimary = isPrimary
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal version: %w", err)
		}
		pipe.Set(ctx, "songversion:"+v.ID, data, 0)
	}
	if !found {
		return ErrNotFound
	}

	song.CurrentVersionID = versionID
	data, err := json.Marshal(song)
	if err != nil {
		return fmt.Errorf("failed to marshal song: %w", err)
	}
	pipe.Set(ctx, "song:"+song.ID, data, 0)

	_, err = pipe.Exec(ctx)
	return err
}

type redisNotificationStore struct {
	redis *redis.Client
}

func (s *redisNotificationStore) CreateIfAbsent(ctx context.Context, n *model.Notification) (*model.Notification, bool, error) {
	key := "notification:" + n.Key()

	data, err := json.Marshal(n)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal notification: %w", err)
	}

	created, err := s.redis.SetNX(ctx, key, data, notificationTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if !created {
		var existing model.Notification
		if err := getJSON(ctx, s.redis, key, &existing); err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}

	if err := s.redis.LPush(ctx, "user:"+n.UserID+":notifications", n.Key()).Err(); err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (s *redisNotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	keys, err := s.redis.LRange(ctx, "user:"+userID+":notifications", 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	notifications := make([]*model.Notification, 0, len(keys))
	for _, key := range keys {
		var n model.Notification
		if err := getJSON(ctx, s.redis, "notification:"+key, &n); err != nil {
			if err == ErrNotFound {
				continue // expired
			}
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	return notifications, nil
}

type redisArtistStore struct {
	redis *redis.Client
}

func (s *redisArtistStore) Get(ctx context.Context, id string) (*model.Artist, error) {
	var a model.Artist
	if err := getJSON(ctx, s.redis, "artist:"+id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *redisArtistStore) Save(ctx context.Context, a *model.Artist) error {
	return setJSON(ctx, s.redis, "artist:"+a.ID, a)
}

func (s *redisArtistStore) Follow(ctx context.Context, artistID, userID string) error {
	return s.redis.SAdd(ctx, "artist:"+artistID+":followers", userID).Err()
}

func (s *redisArtistStore) Unfollow(ctx context.Context, artistID, userID string) error {
	return s.redis.SRem(ctx, "artist:"+artistID+":followers", userID).Err()
}

func (s *redisArtistStore) Followers(ctx context.Context, artistID string) ([]string, error) {
	return s.redis.SMembers(ctx, "artist:"+artistID+":followers").Result()
}

// Helpers

func getJSON(ctx context.Context, client *redis.Client, key string, out any) error {
	data, err := client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func setJSON(ctx context.Context, client *redis.Client, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return client.Set(ctx, key, data, 0).Err()
}
