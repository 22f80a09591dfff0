package registry

import (
	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/types"
)

// MergeThread resolves one thread seen by both writers. The server derives a
// title lazily from the first message, while the client may already hold a
// better one computed at send time: a local non-placeholder title wins, and
// every other field comes from the remote entry.
func MergeThread(local *types.Thread, remote types.Thread) types.Thread {
	merged := remote
	merged.Ephemeral = false
	if local != nil {
		if !core.IsPlaceholderTitle(local.Title) {
			merged.Title = local.Title
		}
		if merged.CreatedAt.IsZero() {
			merged.CreatedAt = local.CreatedAt
		}
	}
	// The listing carries no creation time.
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = merged.UpdatedAt
	}
	return merged
}
