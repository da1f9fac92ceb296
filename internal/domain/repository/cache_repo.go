package repository

import (
	"time"
)

// CacheRepository defines key/value operations backed by Redis
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string) (string, error)
	Delete(key string) error
	Increment(key string) (int64, error)
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
}
