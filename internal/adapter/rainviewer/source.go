package rainviewer

import (
	"context"
	"fmt"

	"github.com/skycast-labs/radarcache/internal/tile"
)

// TileSource adapts a Client to the tile cache's Provider interface. The
// tile host comes from the most recent manifest, so it is resolved per
// fetch rather than fixed at construction.
type TileSource struct {
	client *Client
	host   func() (string, bool)
}

// NewTileSource creates a TileSource. host reports the current tile host
// and whether a manifest has been loaded yet.
func NewTileSource(client *Client, host func() (string, bool)) *TileSource {
	return &TileSource{client: client, host: host}
}

// FetchTile builds the provider URL for the request and fetches it.
func (s *TileSource) FetchTile(ctx context.Context, r tile.Request) ([]byte, error) {
	host, ok := s.host()
	if !ok {
		return nil, fmt.Errorf("radar unavailable: no frame manifest loaded")
	}
	return s.client.FetchTile(ctx, TileURL(host, r))
}
