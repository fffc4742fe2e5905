package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/order"
)

const (
	// positionKeyPrefix keys individual positions: bot:position:{symbol}
	positionKeyPrefix = "bot:position"

	// positionListKey is the set of symbols with saved positions.
	positionListKey = "bot:positions:list"

	// positionTTL keeps stale state from accumulating. Positions close
	// within hours or days; a week of retention is ample.
	positionTTL = 7 * 24 * time.Hour
)

// PositionStore mirrors open positions into Redis so the bot can resume
// after a restart. When Redis is unavailable it falls back to an in-memory
// cache and trading continues without interruption.
type PositionStore struct {
	client    *redis.Client
	logger    zerolog.Logger
	cacheMu   sync.RWMutex
	cache     map[string]*order.Position
	available atomic.Bool
}

// NewPositionStore builds the store. With Redis disabled in config the
// store runs memory-only.
func NewPositionStore(cfg config.RedisConfig, logger zerolog.Logger) *PositionStore {
	store := &PositionStore{
		logger: logger.With().Str("component", "position_store").Logger(),
		cache:  make(map[string]*order.Position),
	}

	if !cfg.Enabled {
		store.logger.Info().Msg("redis disabled, position state kept in memory only")
		return store
	}

	store.client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.client.Ping(ctx).Err(); err != nil {
		store.logger.Warn().Err(err).Msg("redis unavailable at startup, using in-memory cache")
	} else {
		store.available.Store(true)
		store.logger.Info().Str("addr", cfg.Addr).Msg("redis connected")
	}
	return store
}

func positionKey(symbol string) string {
	return fmt.Sprintf("%s:%s", positionKeyPrefix, symbol)
}

// Save persists a position. Redis failures degrade to the in-memory cache
// without surfacing an error.
func (s *PositionStore) Save(ctx context.Context, pos *order.Position) error {
	if pos == nil {
		return errors.New("cannot save nil position")
	}

	copied := *pos
	s.cacheMu.Lock()
	s.cache[pos.Symbol] = &copied
	s.cacheMu.Unlock()

	if s.client == nil || !s.available.Load() {
		return nil
	}

	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, positionKey(pos.Symbol), data, positionTTL)
	pipe.SAdd(ctx, positionListKey, pos.Symbol)
	pipe.Expire(ctx, positionListKey, positionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("redis save failed, state kept in memory")
		s.available.Store(false)
	}
	return nil
}

// Load returns the saved position for a symbol, or nil when none exists.
func (s *PositionStore) Load(ctx context.Context, symbol string) (*order.Position, error) {
	if s.client != nil && s.available.Load() {
		data, err := s.client.Get(ctx, positionKey(symbol)).Result()
		switch {
		case err == nil:
			var pos order.Position
			if err := json.Unmarshal([]byte(data), &pos); err != nil {
				return nil, fmt.Errorf("failed to unmarshal position: %w", err)
			}
			copied := pos
			s.cacheMu.Lock()
			s.cache[symbol] = &copied
			s.cacheMu.Unlock()
			return &pos, nil
		case errors.Is(err, redis.Nil):
			return s.fromCache(symbol), nil
		default:
			s.logger.Warn().Err(err).Msg("redis read failed, using in-memory cache")
			s.available.Store(false)
		}
	}
	return s.fromCache(symbol), nil
}

// LoadAll returns every saved position keyed by symbol.
func (s *PositionStore) LoadAll(ctx context.Context) (map[string]*order.Position, error) {
	if s.client != nil && s.available.Load() {
		symbols, err := s.client.SMembers(ctx, positionListKey).Result()
		if err != nil {
			s.logger.Warn().Err(err).Msg("redis read failed, using in-memory cache")
			s.available.Store(false)
			return s.allFromCache(), nil
		}

		positions := make(map[string]*order.Position, len(symbols))
		for _, symbol := range symbols {
			pos, err := s.Load(ctx, symbol)
			if err != nil {
				s.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to load position")
				continue
			}
			if pos != nil {
				positions[symbol] = pos
			}
		}
		return positions, nil
	}
	return s.allFromCache(), nil
}

// Delete removes a position after it closes.
func (s *PositionStore) Delete(ctx context.Context, symbol string) error {
	s.cacheMu.Lock()
	delete(s.cache, symbol)
	s.cacheMu.Unlock()

	if s.client == nil || !s.available.Load() {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, positionKey(symbol))
	pipe.SRem(ctx, positionListKey, symbol)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("redis delete failed")
		s.available.Store(false)
	}
	return nil
}

// Close releases the Redis connection.
func (s *PositionStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *PositionStore) fromCache(symbol string) *order.Position {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	if pos, ok := s.cache[symbol]; ok {
		copied := *pos
		return &copied
	}
	return nil
}

func (s *PositionStore) allFromCache() map[string]*order.Position {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	positions := make(map[string]*order.Position, len(s.cache))
	for symbol, pos := range s.cache {
		copied := *pos
		positions[symbol] = &copied
	}
	return positions
}
