// Package session реализует хранилище сессионного состояния покупателя в Redis:
// корзина, флаг сохранения адреса и всплывающие сообщения.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/bookstore-checkout/internal/model"
)

const sessionTTL = 14 * 24 * time.Hour

// Message представляет одно всплывающее сообщение для покупателя.
type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Уровни сообщений.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelWarning = "warning"
)

// Store предоставляет доступ к сессионному состоянию в Redis.
type Store struct {
	rdb *redis.Client
}

// NewStore создаёт хранилище сессий и проверяет соединение с Redis.
func NewStore(addr string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{rdb: rdb}, nil
}

// Close закрывает соединение с Redis.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func bagKey(sid string) string      { return "session:" + sid + ":bag" }
func saveInfoKey(sid string) string { return "session:" + sid + ":save_info" }
func messagesKey(sid string) string { return "session:" + sid + ":messages" }

// Bag возвращает корзину сессии. Отсутствие ключа означает пустую корзину.
func (s *Store) Bag(ctx context.Context, sid string) (model.Bag, error) {
	raw, err := s.rdb.Get(ctx, bagKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Bag{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bag: %w", err)
	}

	var bag model.Bag
	if err := json.Unmarshal([]byte(raw), &bag); err != nil {
		return nil, fmt.Errorf("decode bag: %w", err)
	}

	return bag, nil
}

// SaveBag сохраняет корзину сессии. Пустая корзина удаляет ключ.
func (s *Store) SaveBag(ctx context.Context, sid string, bag model.Bag) error {
	if len(bag) == 0 {
		return s.ClearBag(ctx, sid)
	}

	raw, err := json.Marshal(bag)
	if err != nil {
		return fmt.Errorf("encode bag: %w", err)
	}

	if err := s.rdb.Set(ctx, bagKey(sid), raw, sessionTTL).Err(); err != nil {
		return fmt.Errorf("set bag: %w", err)
	}

	return nil
}

// ClearBag удаляет корзину сессии.
func (s *Store) ClearBag(ctx context.Context, sid string) error {
	if err := s.rdb.Del(ctx, bagKey(sid)).Err(); err != nil {
		return fmt.Errorf("del bag: %w", err)
	}
	return nil
}

// SetSaveInfo запоминает пожелание покупателя сохранить адрес в профиле.
func (s *Store) SetSaveInfo(ctx context.Context, sid string, v bool) error {
	val := "0"
	if v {
		val = "1"
	}
	if err := s.rdb.Set(ctx, saveInfoKey(sid), val, sessionTTL).Err(); err != nil {
		return fmt.Errorf("set save_info: %w", err)
	}
	return nil
}

// SaveInfo возвращает сохранённый флаг save_info сессии.
func (s *Store) SaveInfo(ctx context.Context, sid string) (bool, error) {
	raw, err := s.rdb.Get(ctx, saveInfoKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get save_info: %w", err)
	}
	return raw == "1", nil
}

// ClearSaveInfo удаляет флаг save_info сессии.
func (s *Store) ClearSaveInfo(ctx context.Context, sid string) error {
	if err := s.rdb.Del(ctx, saveInfoKey(sid)).Err(); err != nil {
		return fmt.Errorf("del save_info: %w", err)
	}
	return nil
}

// AddMessage добавляет всплывающее сообщение в сессию.
func (s *Store) AddMessage(ctx context.Context, sid, level, text string) error {
	raw, err := json.Marshal(Message{Level: level, Text: text})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	key := messagesKey(sid)
	if err := s.rdb.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	if err := s.rdb.Expire(ctx, key, sessionTTL).Err(); err != nil {
		return fmt.Errorf("expire messages: %w", err)
	}

	return nil
}

// PopMessages возвращает накопленные сообщения сессии и удаляет их.
func (s *Store) PopMessages(ctx context.Context, sid string) ([]Message, error) {
	key := messagesKey(sid)

	raws, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("range messages: %w", err)
	}
	if len(raws) == 0 {
		return nil, nil
	}

	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("del messages: %w", err)
	}

	msgs := make([]Message, 0, len(raws))
	for _, raw := range raws {
		var m Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
	}

	return msgs, nil
}
