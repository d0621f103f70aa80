package memory

import (
	"context"
	"sync"
)

// InMemoryStore is a process-local Store. Conversations vanish on restart;
// use the redisstore backend when state must survive the process.
//
// Concurrency: protected by RWMutex. Loads return deep copies so callers can
// mutate freely before saving.
type InMemoryStore struct {
	mu    sync.RWMutex
	convs map[string]Conversation
}

// NewInMemoryStore creates a new in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{convs: make(map[string]Conversation)}
}

func convKey(userID, sessionID string) string { return userID + ":" + sessionID }

// Load implements Store.
func (s *InMemoryStore) Load(_ context.Context, userID, sessionID string) (Conversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[convKey(userID, sessionID)]
	if !ok {
		return Conversation{}, false, nil
	}

	return copyConversation(conv), true, nil
}

// Save implements Store.
func (s *InMemoryStore) Save(_ context.Context, conv Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.convs[convKey(conv.UserID, conv.SessionID)] = copyConversation(conv)

	return nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.convs, convKey(userID, sessionID))

	return nil
}

func copyConversation(conv Conversation) Conversation {
	cp := conv
	cp.Turns = make([]Turn, len(conv.Turns))
	copy(cp.Turns, conv.Turns)
	cp.RecentProducts = append([]string(nil), conv.RecentProducts...)
	if conv.Preferences != nil {
		cp.Preferences = make(map[string]string, len(conv.Preferences))
		for k, v := range conv.Preferences {
			cp.Preferences[k] = v
		}
	}
	return cp
}
