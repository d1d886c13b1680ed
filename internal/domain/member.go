package domain

// Member is a participant of a single group.
type Member struct {
	ID          string
	GroupID     string
	DisplayName string
}

// MemberIDs returns the set of member ids.
func MemberIDs(members []Member) map[string]struct{} {
	ids := make(map[string]struct{}, len(members))
	for _, m := range members {
		ids[m.ID] = struct{}{}
	}
	return ids
}
