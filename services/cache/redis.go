package cachesvc

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/lesson"
)

const (
	keyPrefix     = "week:"
	versionPrefix = "weekver:"
)

// WeekCache stores published weeks in Redis as JSON.
type WeekCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ lesson.WeekCache = (*WeekCache)(nil) // interface compliance check

func NewWeekCache(client *redis.Client, conf *core.Config) *WeekCache {
	return &WeekCache{client: client, ttl: conf.Cache.TTL}
}

// NewClient connects to the Redis server at conf.Cache.RedisAddr.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: conf.Cache.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", conf.Cache.RedisAddr)
	}
	return client, nil
}

// versionKey holds the counter InvalidateWeeks bumps: weekver:2025-09-01
func versionKey(weekStart core.Date) string {
	return versionPrefix + weekStart.String()
}

// weekKey is independent of the order of groupIDs: week:2025-09-01:v3:1,4,7
func weekKey(weekStart core.Date, version int64, groupIDs []int) string {
	ids := append([]int(nil), groupIDs...)
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return keyPrefix + weekStart.String() + ":v" + strconv.FormatInt(version, 10) + ":" + strings.Join(parts, ",")
}

func (c *WeekCache) version(ctx context.Context, weekStart core.Date) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey(weekStart)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, errors.Wrap(err, "reading week version")
}

func (c *WeekCache) GetWeek(ctx context.Context, weekStart core.Date, groupIDs []int) ([]lesson.Lesson, int64, bool, error) {
	ver, err := c.version(ctx, weekStart)
	if err != nil {
		return nil, 0, false, err
	}
	data, err := c.client.Get(ctx, weekKey(weekStart, ver, groupIDs)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ver, false, nil
		}
		return nil, 0, false, errors.Wrap(err, "reading week")
	}

	var lessons []lesson.Lesson
	if err = json.Unmarshal(data, &lessons); err != nil {
		return nil, 0, false, errors.Wrap(err, "decoding week")
	}
	return lessons, ver, true, nil
}

func (c *WeekCache) SetWeek(ctx context.Context, weekStart core.Date, groupIDs []int, version int64, lessons []lesson.Lesson) error {
	if lessons == nil {
		lessons = []lesson.Lesson{}
	}
	data, err := json.Marshal(lessons)
	if err != nil {
		return errors.Wrap(err, "encoding week")
	}
	return errors.Wrap(c.client.Set(ctx, weekKey(weekStart, version, groupIDs), data, c.ttl).Err(), "writing week")
}

// InvalidateWeeks bumps the version of the given weeks, then drops their cached group selections.
// Entries written later under an older version are never read again and expire with the TTL.
func (c *WeekCache) InvalidateWeeks(ctx context.Context, weekStarts ...core.Date) error {
	for _, ws := range weekStarts {
		if err := c.client.Incr(ctx, versionKey(ws)).Err(); err != nil {
			return errors.Wrapf(err, "bumping week %s", ws)
		}

		var keys []string
		iter := c.client.Scan(ctx, 0, keyPrefix+ws.String()+":*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return errors.Wrapf(err, "scanning week %s", ws)
		}
		if len(keys) == 0 {
			continue
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return errors.Wrapf(err, "deleting week %s", ws)
		}
	}
	return nil
}
