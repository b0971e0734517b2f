package store

import (
	"fmt"

	"github.com/google/uuid"
)

// Broadcast writes an event into ring slot broadcast_count mod BroadcastSlots,
// overwriting the previous occupant. The sender is marked delivered, every
// other tab is marked unread. Subscribers are woken after the lock is released.
//
// Callers must not hold the lock.
func (s *Store) Broadcast(kind EventKind, senderTab int, payload string) BroadcastEvent {
	s.Acquire()
	now := s.now()
	slot := s.broadcastCount % BroadcastSlots
	ev := BroadcastEvent{
		ID:        uuid.NewString(),
		Seq:       s.broadcastCount,
		Kind:      kind,
		SenderTab: senderTab,
		Timestamp: now,
		Payload:   truncate(payload, MaxPayloadLength-1),
	}
	ev.Delivered[Slot(senderTab)] = true
	s.broadcasts[slot] = ev
	s.broadcastCount++
	s.lastActivity = now
	s.Release()

	s.notify(Update{Kind: kind, Seq: ev.Seq})
	return ev
}

// HasUnread reports whether any ring slot holds an event tabID has not consumed.
func (s *Store) HasUnread(tabID int) bool {
	slot := Slot(tabID)
	s.Acquire()
	defer s.Release()
	for i := range s.broadcasts {
		if !s.broadcasts[i].Empty() && !s.broadcasts[i].Delivered[slot] {
			return true
		}
	}
	return false
}

// DrainUnread marks every unread slot delivered for tabID and returns those
// events in slot-ascending order. Once the ring has wrapped this is not
// chronological order; sort by Seq if that matters.
func (s *Store) DrainUnread(tabID int) []BroadcastEvent {
	slot := Slot(tabID)
	s.Acquire()
	defer s.Release()

	var drained []BroadcastEvent
	for i := range s.broadcasts {
		ev := &s.broadcasts[i]
		if ev.Empty() || ev.Delivered[slot] {
			continue
		}
		ev.Delivered[slot] = true
		drained = append(drained, *ev)
	}
	return drained
}

// Events returns every occupied ring slot in slot order.
func (s *Store) Events() []BroadcastEvent {
	s.Acquire()
	defer s.Release()
	var events []BroadcastEvent
	for _, ev := range s.broadcasts {
		if !ev.Empty() {
			events = append(events, ev)
		}
	}
	return events
}

// Subscribe creates a new subscription channel woken after every broadcast.
func (s *Store) Subscribe() chan Update {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	ch := make(chan Update, BroadcastSlots)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

func (s *Store) notify(u Update) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}

// Notification renders an event the way a tab surfaces it.
func Notification(ev BroadcastEvent) string {
	switch ev.Kind {
	case EventBookmarkAdded:
		return fmt.Sprintf("Tab %d added bookmark: %s", ev.SenderTab, ev.Payload)
	case EventBookmarkRemoved:
		return fmt.Sprintf("Tab %d removed bookmark: %s", ev.SenderTab, ev.Payload)
	case EventNewTab:
		return fmt.Sprintf("New tab opened: %d", ev.SenderTab)
	case EventTabClosed:
		return fmt.Sprintf("Tab %d closed", ev.SenderTab)
	case EventPageLoaded:
		return fmt.Sprintf("Tab %d loaded page: %s", ev.SenderTab, ev.Payload)
	case EventMessage:
		return fmt.Sprintf("Tab %d says: %s", ev.SenderTab, ev.Payload)
	default:
		return ""
	}
}
