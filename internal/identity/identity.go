// Package identity derives stable conversation keys shared by both
// participants without a coordination round-trip.
package identity

// DeriveConversationID returns the key of the direct conversation between a
// and b: the two ids in lexicographic order, concatenated without a
// delimiter. The result is independent of argument order.
//
// The scheme is not collision-proof: ("ab","c") and ("a","bc") share a key.
func DeriveConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + b
}

// PeerOf returns the other participant of a two-party conversation, or ""
// when userID is not one of them.
func PeerOf(participants []string, userID string) string {
	if len(participants) != 2 {
		return ""
	}
	switch userID {
	case participants[0]:
		return participants[1]
	case participants[1]:
		return participants[0]
	}
	return ""
}
