// Package cache содержит read-through кэш поверх Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SettingsKey задаёт ключ снимка настроек лотереи.
const SettingsKey = "settings:lottery"

// WalletKey возвращает ключ кэша кошелька пользователя.
func WalletKey(userID int64) string {
	return "wallet:user:" + strconv.FormatInt(userID, 10)
}

func versionKey(key string) string {
	return key + ":v"
}

// setIfVersion записывает значение, только если версия ключа не менялась с момента чтения.
// KEYS[1] ключ значения, KEYS[2] ключ версии; ARGV: версия, значение, TTL в миллисекундах.
var setIfVersion = redis.NewScript(`
local v = redis.call('GET', KEYS[2])
if not v then v = '0' end
if v ~= ARGV[1] then return 0 end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// Cache хранит JSON-представления значений в Redis. Нулевой *Cache является валидным
// отключённым кэшем: чтения промахиваются, записи игнорируются.
//
// У каждого ключа есть счётчик версии, который Delete увеличивает. Чтение из базы
// с последующей записью в кэш выполняется так: Version, загрузка, SetIfVersion.
// Если между Version и SetIfVersion прошла инвалидация, устаревшее значение не записывается.
type Cache struct {
	rdb redis.Cmdable
}

// New создаёт кэш поверх клиента Redis.
func New(rdb redis.Cmdable) *Cache {
	return &Cache{rdb: rdb}
}

// Get читает значение по ключу в dest и сообщает, найдено ли оно.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}

	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// Version возвращает текущую версию ключа. Отсутствующая версия равна нулю.
func (c *Cache) Version(ctx context.Context, key string) (int64, error) {
	if c == nil || c.rdb == nil {
		return 0, nil
	}

	v, err := c.rdb.Get(ctx, versionKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version %s: %w", key, err)
	}
	return v, nil
}

// SetIfVersion сохраняет значение, если версия ключа всё ещё равна version.
// Возвращает false, если ключ был инвалидирован после чтения версии.
func (c *Cache) SetIfVersion(ctx context.Context, key string, version int64, value any, ttl time.Duration) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}

	res, err := setIfVersion.Run(ctx, c.rdb,
		[]string{key, versionKey(key)},
		strconv.FormatInt(version, 10), b, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set %s: %w", key, err)
	}
	return res == 1, nil
}

// Delete удаляет ключи и увеличивает их версии, чтобы отклонить запись,
// начатую до удаления.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return nil
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Incr(ctx, versionKey(k))
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
