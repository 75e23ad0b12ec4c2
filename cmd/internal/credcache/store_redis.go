package credcache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "sso:cred"

	fieldGUID         = "guid"
	fieldSessionToken = "session_token"
	fieldProfileImage = "profile_image"
)

// RedisCache stores each entry as a hash at <prefix>:entry:<mail> and keeps
// the set of cached mails at <prefix>:mails.
//
// RedisCache does not own the client; the caller closes it.
type RedisCache struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisCache constructs a RedisCache. An empty prefix selects DefaultPrefix.
func NewRedisCache(rdb redis.Cmdable, prefix string) (*RedisCache, error) {
	if rdb == nil {
		return nil, errors.New("credcache: nil redis client")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisCache{rdb: rdb, prefix: prefix}, nil
}

var _ Cache = (*RedisCache)(nil)

func (c *RedisCache) entryKey(mail string) string { return c.prefix + ":entry:" + mail }
func (c *RedisCache) indexKey() string            { return c.prefix + ":mails" }

func (c *RedisCache) Upsert(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}

	key := c.entryKey(e.Mail)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldGUID, e.GUID,
			fieldSessionToken, e.SessionToken,
		)
		if e.ProfileImage != nil {
			pipe.HSet(ctx, key, fieldProfileImage, *e.ProfileImage)
		} else {
			pipe.HDel(ctx, key, fieldProfileImage)
		}
		pipe.SAdd(ctx, c.indexKey(), e.Mail)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, mail string) (Entry, bool, error) {
	fields, err := c.rdb.HGetAll(ctx, c.entryKey(mail)).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: get: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return Entry{}, false, nil
	}

	e := Entry{
		GUID:         fields[fieldGUID],
		Mail:         mail,
		SessionToken: fields[fieldSessionToken],
	}
	if img, ok := fields[fieldProfileImage]; ok {
		e.ProfileImage = &img
	}
	return e, true, nil
}

func (c *RedisCache) Remove(ctx context.Context, mail string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.entryKey(mail))
		pipe.SRem(ctx, c.indexKey(), mail)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: remove: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisCache) RemoveAll(ctx context.Context) error {
	mails, err := c.ListMails(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(mails)+1)
	for _, mail := range mails {
		keys = append(keys, c.entryKey(mail))
	}
	keys = append(keys, c.indexKey())

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: remove all: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisCache) ListMails(ctx context.Context) ([]string, error) {
	mails, err := c.rdb.SMembers(ctx, c.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}
	return mails, nil
}
