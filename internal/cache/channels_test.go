package cache

import (
	"testing"

	"github.com/nfukui/chatline/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestChannelCache_NilReceiver(t *testing.T) {
	var cc *ChannelCache

	channels, ok := cc.GetChannels()
	assert.False(t, ok, "expected cache miss on nil cache")
	assert.Nil(t, channels)

	assert.NoError(t, cc.SetChannels([]types.Channel{{Id: 1, Name: "general"}}))
	assert.NoError(t, cc.Invalidate())
	assert.NoError(t, cc.Flush())
}

func TestChannelCache_NilRedis(t *testing.T) {
	cc := NewChannelCache(nil)

	channels, ok := cc.GetChannels()
	assert.False(t, ok, "expected cache miss without redis")
	assert.Nil(t, channels)

	assert.NoError(t, cc.SetChannels(nil))
	assert.NoError(t, cc.Invalidate())
	assert.NoError(t, cc.Flush())
}
