package changefeed

import (
	"encoding/json"
	"fmt"

	"github.com/foodcourt/storefront/internal/domain/feed"
)

func encodeChange(c feed.Change) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change: %w", err)
	}
	return data, nil
}

func decodeChange(data []byte) (feed.Change, error) {
	var c feed.Change
	if err := json.Unmarshal(data, &c); err != nil {
		return feed.Change{}, fmt.Errorf("failed to unmarshal change: %w", err)
	}
	if !c.Entity.IsValid() {
		return feed.Change{}, fmt.Errorf("unknown entity %q", c.Entity)
	}
	return c, nil
}

func routingKey(c feed.Change) string {
	return string(c.Entity) + "." + string(c.Type)
}
