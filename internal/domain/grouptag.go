package domain

import "time"

// GroupTag is a transient label grouping tickets for bulk operations. A tag
// with an empty member set must never be observable: emptying the set and
// deleting the tag is one logical transition.
type GroupTag struct {
	Name      string
	MemberIDs []string
	CreatedAt time.Time
}
