package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Preference keys carried over from the mobile app's Settings store. The
// backup format preserves unknown keys too; these are just the ones the
// backend itself reads.
const (
	PrefKeyCurrencySymbol       = "CURRENCY_SYMBOL"
	PrefKeyThemeMode            = "THEME_MODE"
	PrefKeyAllowNegativeBalance = "ALLOW_NEGATIVE_BALANCE"
	PrefKeyIndianFormat         = "FORMAT_INDIAN"
	PrefKeyDefaultCash          = "DEFAULT_CASH"
	PrefKeyLowBalanceNotif      = "NOTIF_LOW_BALANCE"
	PrefKeyLowBalanceThreshold  = "LOW_BALANCE_THRESHOLD"
	PrefKeyAutoBackup           = "AUTO_BACKUP"
)

type PreferenceKind string

const (
	PreferenceKindBool   PreferenceKind = "bool"
	PreferenceKindInt    PreferenceKind = "int"
	PreferenceKindFloat  PreferenceKind = "float"
	PreferenceKindLong   PreferenceKind = "long"
	PreferenceKindString PreferenceKind = "string"
)

// PreferenceValue is the closed variant set a preference may hold. Kind
// decides which field is meaningful; int and long share the carrier field
// but keep their kind so a backup round-trips losslessly.
type PreferenceValue struct {
	Kind  PreferenceKind `json:"kind"`
	Bool  bool           `json:"bool,omitempty"`
	Int   int64          `json:"int,omitempty"`
	Float float64        `json:"float,omitempty"`
	Str   string         `json:"string,omitempty"`
}

func BoolPreference(v bool) PreferenceValue {
	return PreferenceValue{Kind: PreferenceKindBool, Bool: v}
}

func IntPreference(v int64) PreferenceValue {
	return PreferenceValue{Kind: PreferenceKindInt, Int: v}
}

func LongPreference(v int64) PreferenceValue {
	return PreferenceValue{Kind: PreferenceKindLong, Int: v}
}

func FloatPreference(v float64) PreferenceValue {
	return PreferenceValue{Kind: PreferenceKindFloat, Float: v}
}

func StringPreference(v string) PreferenceValue {
	return PreferenceValue{Kind: PreferenceKindString, Str: v}
}

func (v PreferenceValue) Valid() bool {
	switch v.Kind {
	case PreferenceKindBool, PreferenceKindInt, PreferenceKindFloat, PreferenceKindLong, PreferenceKindString:
		return true
	}
	return false
}

// PreferenceStore is the narrow surface the ledger core needs: read the full
// set for a snapshot, and clear+repopulate it during a restore.
type PreferenceStore interface {
	All(ctx context.Context) (map[string]PreferenceValue, error)
	Replace(ctx context.Context, values map[string]PreferenceValue) error
	Get(ctx context.Context, key string) (PreferenceValue, bool, error)
	Set(ctx context.Context, key string, value PreferenceValue) error
}

const redisPreferenceHash = "ledger:preferences"

// RedisPreferenceStore keeps the typed preference set in a single redis
// hash, one JSON-encoded PreferenceValue per field.
type RedisPreferenceStore struct {
	rdb *redis.Client
}

func NewRedisPreferenceStore(rdb *redis.Client) *RedisPreferenceStore {
	return &RedisPreferenceStore{rdb: rdb}
}

func (s *RedisPreferenceStore) All(ctx context.Context) (map[string]PreferenceValue, error) {
	raw, err := s.rdb.HGetAll(ctx, redisPreferenceHash).Result()
	if err != nil {
		return nil, err
	}
	values := make(map[string]PreferenceValue, len(raw))
	for key, enc := range raw {
		var v PreferenceValue
		if err := json.Unmarshal([]byte(enc), &v); err != nil {
			return nil, fmt.Errorf("decode preference %q: %w", key, err)
		}
		values[key] = v
	}
	return values, nil
}

func (s *RedisPreferenceStore) Replace(ctx context.Context, values map[string]PreferenceValue) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, redisPreferenceHash)
	for key, v := range values {
		if !v.Valid() {
			return fmt.Errorf("preference %q has unknown kind %q", key, v.Kind)
		}
		enc, err := json.Marshal(v)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, redisPreferenceHash, key, enc)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisPreferenceStore) Get(ctx context.Context, key string) (PreferenceValue, bool, error) {
	enc, err := s.rdb.HGet(ctx, redisPreferenceHash, key).Result()
	if err == redis.Nil {
		return PreferenceValue{}, false, nil
	}
	if err != nil {
		return PreferenceValue{}, false, err
	}
	var v PreferenceValue
	if err := json.Unmarshal([]byte(enc), &v); err != nil {
		return PreferenceValue{}, false, err
	}
	return v, true, nil
}

func (s *RedisPreferenceStore) Set(ctx context.Context, key string, value PreferenceValue) error {
	if !value.Valid() {
		return fmt.Errorf("preference %q has unknown kind %q", key, value.Kind)
	}
	enc, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, redisPreferenceHash, key, enc).Err()
}

// MemoryPreferenceStore backs the CLI tools and tests.
type MemoryPreferenceStore struct {
	mu     sync.RWMutex
	values map[string]PreferenceValue
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{values: make(map[string]PreferenceValue)}
}

func (s *MemoryPreferenceStore) All(ctx context.Context) (map[string]PreferenceValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]PreferenceValue, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryPreferenceStore) Replace(ctx context.Context, values map[string]PreferenceValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]PreferenceValue, len(values))
	for k, v := range values {
		if !v.Valid() {
			return fmt.Errorf("preference %q has unknown kind %q", k, v.Kind)
		}
		s.values[k] = v
	}
	return nil
}

func (s *MemoryPreferenceStore) Get(ctx context.Context, key string) (PreferenceValue, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryPreferenceStore) Set(ctx context.Context, key string, value PreferenceValue) error {
	if !value.Valid() {
		return fmt.Errorf("preference %q has unknown kind %q", key, value.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// AllowNegativeBalance reads the policy toggle; the mobile app's default is
// permissive, so a missing key or store means true.
func AllowNegativeBalance(ctx context.Context, store PreferenceStore) bool {
	if store == nil {
		return true
	}
	v, ok, err := store.Get(ctx, PrefKeyAllowNegativeBalance)
	if err != nil || !ok || v.Kind != PreferenceKindBool {
		return true
	}
	return v.Bool
}
