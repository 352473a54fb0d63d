package domain

import "strings"

// ConversationKey identifies the unordered pair of users a conversation
// belongs to. Both participant orders map to the same key, so it can serve
// as a storage prefix shared by both directions of the exchange.
type ConversationKey string

// NewConversationKey canonicalizes the pair: the lexicographically smaller
// user id always comes first. A self-conversation yields "id|id".
func NewConversationKey(userA, userB string) ConversationKey {
	if strings.Compare(userA, userB) > 0 {
		userA, userB = userB, userA
	}
	return ConversationKey(userA + "|" + userB)
}

func (k ConversationKey) String() string {
	return string(k)
}
