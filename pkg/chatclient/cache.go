package chatclient

import (
	"slices"
	"strings"
)

// mergeMessages folds incoming into existing by id and returns the conversation ordered by
// created_at then id. A message once seen as read stays read.
func mergeMessages(existing []Message, incoming ...Message) []Message {
	merged := make([]Message, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))

	add := func(msg Message) {
		if pos, ok := index[msg.ID]; ok {
			read := merged[pos].IsRead || msg.IsRead
			if msg.Sender == nil {
				msg.Sender = merged[pos].Sender
			}
			merged[pos] = msg
			merged[pos].IsRead = read
			return
		}
		index[msg.ID] = len(merged)
		merged = append(merged, msg)
	}
	for _, msg := range existing {
		add(msg)
	}
	for _, msg := range incoming {
		if msg.ID == "" {
			continue
		}
		add(msg)
	}

	slices.SortStableFunc(merged, func(a, b Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return merged
}

// prependNotification puts n at the head of the list unless its id is already present.
func prependNotification(list []Notification, n Notification) ([]Notification, bool) {
	for _, existing := range list {
		if existing.ID == n.ID {
			return list, false
		}
	}
	return append([]Notification{n}, list...), true
}

func unreadFor(messages []Message, userID string) []string {
	var ids []string
	for _, msg := range messages {
		if msg.ReceiverID == userID && !msg.IsRead {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}
