package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const redisOpTimeout = 2 * time.Second

// Redis — реализация кэша поверх Redis с фиксированным TTL.
// Ошибки соединения трактуются как промах: кэш деградирует до
// сквозного чтения из хранилища, а не роняет вызов.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *log.Entry
}

// NewRedis создаёт Redis-кэш. prefix отделяет ключи кэша от чужих ключей
// в той же базе и ограничивает область InvalidateAll.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *log.Entry) *Redis {
	if logger == nil {
		logger = log.WithField("component", "redis-cache")
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *Redis) key(key string) string {
	return c.prefix + key
}

// Get возвращает значение и признак попадания.
func (c *Redis) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("key", key).Debug("redis get failed, treating as miss")
		}
		return nil, false
	}
	return value, true
}

// Put кладёт значение с TTL кэша. Ошибка записи только логируется.
func (c *Redis) Put(key string, value []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("redis set failed")
	}
}

// Invalidate удаляет одну запись.
func (c *Redis) Invalidate(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("redis del failed")
	}
}

// InvalidateAll удаляет все записи с префиксом кэша.
func (c *Redis) InvalidateAll() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.WithError(err).WithField("key", iter.Val()).Debug("redis del failed")
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Debug("redis scan failed")
	}
}

var _ domain.Cache = (*Redis)(nil)
