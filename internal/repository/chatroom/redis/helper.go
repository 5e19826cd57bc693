package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}

func (r repo) expire(ctx context.Context, c redis.Cmdable, keys ...string) {
	if r.expireDuration <= 0 {
		return
	}

	for _, key := range keys {
		c.Expire(ctx, key, r.expireDuration)
	}
}
