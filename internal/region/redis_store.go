package region

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig - параметры подключения к Redis
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string // по умолчанию "mmwu:regions:"
	DialTimeout time.Duration
}

// RedisStore хранит регионы мира в хэше Redis: поле - имя региона, значение - JSON.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(ctx context.Context, config RedisConfig) (*RedisStore, error) {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "mmwu:regions:"
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: config.KeyPrefix}, nil
}

func (s *RedisStore) key(worldName string) string {
	return s.prefix + worldName
}

func (s *RedisStore) Put(ctx context.Context, worldName string, r Region) error {
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("ошибка сериализации региона %s: %w", r.Name, err)
	}
	return s.client.HSet(ctx, s.key(worldName), r.Name, data).Err()
}

func (s *RedisStore) List(ctx context.Context, worldName string) ([]Region, error) {
	raw, err := s.client.HGetAll(ctx, s.key(worldName)).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения регионов мира %s: %w", worldName, err)
	}

	out := make([]Region, 0, len(raw))
	for name, data := range raw {
		var r Region
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("регион %s мира %s повреждён: %w", name, worldName, err)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *RedisStore) Remove(ctx context.Context, worldName, regionName string) error {
	return s.client.HDel(ctx, s.key(worldName), regionName).Err()
}

// Replace заменяет хэш мира одной транзакцией MULTI/EXEC
func (s *RedisStore) Replace(ctx context.Context, worldName string, regions []Region) error {
	fields := make([]interface{}, 0, len(regions)*2)
	for _, r := range regions {
		if err := r.Validate(); err != nil {
			return err
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("ошибка сериализации региона %s: %w", r.Name, err)
		}
		fields = append(fields, r.Name, data)
	}

	key := s.key(worldName)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка записи регионов мира %s: %w", worldName, err)
	}
	return nil
}

func (s *RedisStore) Drop(ctx context.Context, worldName string) error {
	return s.client.Del(ctx, s.key(worldName)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
