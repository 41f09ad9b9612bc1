// Package dedupe persists the set of links a topic has already published.
package dedupe

import (
	"encoding/json"
	"fmt"

	"github.com/bakkerme/digestbot/internal/core"
)

// encodeLinks renders the seen set in the on-disk format shared by the file and
// S3 stores: a pretty-printed JSON array of strings.
func encodeLinks(seen core.SeenSet) ([]byte, error) {
	links := seen.Links()
	data, err := json.MarshalIndent(links, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal seen set: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeLinks(data []byte) (core.SeenSet, error) {
	var links []string
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, fmt.Errorf("decode seen set: %w", err)
	}
	return core.NewSeenSet(links...), nil
}

var (
	_ core.Store = (*FileStore)(nil)
	_ core.Store = (*SQLiteStore)(nil)
	_ core.Store = (*RedisStore)(nil)
	_ core.Store = (*S3Store)(nil)
	_ core.Store = (*BadgerStore)(nil)
)
