package stub

import (
	"encoding/json"
	"strconv"
	"sync"
)

const historyLimit = 1000

// frame is one wire record on the seat stream
type frame struct {
	ID    int64
	Event string
	Data  string
}

// hub fans seat updates out to the subscribers of one event and keeps a
// bounded history so a reconnecting client can replay what it missed via
// Last-Event-ID.
type hub struct {
	mu      sync.Mutex
	nextID  int64
	subs    map[chan frame]struct{}
	history []frame
}

func newHub() *hub {
	return &hub{
		subs: make(map[chan frame]struct{}),
	}
}

// publish broadcasts a record to all subscribers and appends it to history
func (h *hub) publish(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.nextID++
	f := frame{ID: h.nextID, Event: event, Data: string(payload)}
	h.history = append(h.history, f)
	if len(h.history) > historyLimit {
		h.history = h.history[len(h.history)-historyLimit:]
	}
	for ch := range h.subs {
		select {
		case ch <- f:
		default:
			// slow subscriber: drop rather than block the publisher, the
			// client's poll backstop recovers the lost record
		}
	}
	h.mu.Unlock()
}

// subscribe registers a new subscriber. When lastEventID parses as a frame
// id, frames after it are returned for replay. The returned cancel func
// must be called when the subscriber goes away.
func (h *hub) subscribe(lastEventID string) (chan frame, []frame, func()) {
	ch := make(chan frame, 64)

	h.mu.Lock()
	h.subs[ch] = struct{}{}

	var replay []frame
	if lastEventID != "" {
		if lastID, err := strconv.ParseInt(lastEventID, 10, 64); err == nil {
			for _, f := range h.history {
				if f.ID > lastID {
					replay = append(replay, f)
				}
			}
		}
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, replay, cancel
}
