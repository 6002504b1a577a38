package cache

import (
	"time"

	"github.com/nfukui/chatline/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	channelListKey = "channels"
	// The channel list changes rarely; an hour matches how long the
	// sidebar may lag behind a newly created channel at worst.
	channelListTTL = time.Hour
)

// ChannelCache caches the channel list. All methods are safe on a nil
// receiver or a nil redis client so the service degrades to the
// database when redis is absent.
type ChannelCache struct {
	redis *RedisCache
}

func NewChannelCache(redis *RedisCache) *ChannelCache {
	return &ChannelCache{redis: redis}
}

func (cc *ChannelCache) GetChannels() ([]types.Channel, bool) {
	if cc == nil || cc.redis == nil {
		return nil, false
	}

	data, err := cc.redis.Get(channelListKey)
	if err != nil || data == nil {
		return nil, false
	}

	var channels []types.Channel
	if err := msgpack.Unmarshal(data, &channels); err != nil {
		return nil, false
	}

	return channels, true
}

func (cc *ChannelCache) SetChannels(channels []types.Channel) error {
	if cc == nil || cc.redis == nil {
		return nil
	}

	data, err := msgpack.Marshal(channels)
	if err != nil {
		return err
	}

	return cc.redis.Set(channelListKey, data, channelListTTL)
}

func (cc *ChannelCache) Invalidate() error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	return cc.redis.Delete(channelListKey)
}

// Flush clears the whole cache. Used by the maintenance reset.
func (cc *ChannelCache) Flush() error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	return cc.redis.FlushAll()
}
