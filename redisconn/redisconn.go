// Shared Redis connection handling for all cluster facilities.
package redisconn

import (
	"context"
	"sync"

	"github.com/go-errors/errors"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/redis/go-redis/v9"
)

var (
	mu     sync.Mutex
	client *redis.Client
)

// GetClient returns the shared pooled client for this process,
// creating it on first use. go-redis pools connections internally so
// one client serves all services.
func GetClient(ctx context.Context, config_obj *config.Config) (
	*redis.Client, error) {

	mu.Lock()
	defer mu.Unlock()

	if client != nil {
		return client, nil
	}

	if config_obj.Redis == nil || config_obj.Redis.Address == "" {
		return nil, errors.New("No Redis section in config")
	}

	new_client := redis.NewClient(&redis.Options{
		Addr:     config_obj.Redis.Address,
		Password: config_obj.Redis.Password,
		DB:       config_obj.Redis.DB,
	})

	err := new_client.Ping(ctx).Err()
	if err != nil {
		return nil, errors.New(err)
	}

	client = new_client
	return client, nil
}

// SetClient installs a preconnected client. Used by tests running
// against miniredis.
func SetClient(new_client *redis.Client) {
	mu.Lock()
	defer mu.Unlock()

	client = new_client
}

// Reset drops the shared client. The next GetClient reconnects.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	if client != nil {
		client.Close()
		client = nil
	}
}
