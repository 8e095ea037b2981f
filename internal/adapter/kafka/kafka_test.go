package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast-labs/radarcache/internal/adapter/rainviewer"
)

func TestSerializeToMessage(t *testing.T) {
	publishedAt := time.Date(2026, time.August, 30, 15, 10, 0, 0, time.UTC)
	frame := rainviewer.Frame{
		Time: 1716999600,
		Path: "/v2/radar/1716999600",
	}

	msg, err := serializeToMessage("https://tilecache.rainviewer.com", frame, publishedAt)
	require.NoError(t, err)

	assert.Equal(t, []byte("/v2/radar/1716999600"), msg.Key)
	assert.JSONEq(t, `{
		"path": "/v2/radar/1716999600",
		"time": 1716999600,
		"host": "https://tilecache.rainviewer.com",
		"published_at": "2026-08-30T15:10:00Z"
	}`, string(msg.Value))

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "frame_time", msg.Headers[0].Key)
	assert.Equal(t, []byte("1716999600"), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-08-30T15:10:00Z"), msg.Headers[1].Value)
}
