package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zenbuns/awr-radar-analyzer/internal/radar"
)

type streamedEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// streamEvents pushes playback and collection lifecycle events to the
// client as server-sent events. Subscriber callbacks must not block, so
// events go through a buffered channel; a slow client drops events rather
// than stalling a session's delivery goroutine.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := make(chan streamedEvent, 64)

	playbackSub := s.playback.SubscribeFunc(func(ev radar.PlaybackEvent) {
		select {
		case events <- streamedEvent{Type: "playback", Data: ev}:
		default:
		}
	})
	defer s.playback.Unsubscribe(playbackSub)

	collectionSub := s.controller.SubscribeFunc(func(ev radar.CollectionEndedEvent) {
		select {
		case events <- streamedEvent{Type: "collection_ended", Data: ev}:
		default:
		}
	})
	defer s.controller.Unsubscribe(collectionSub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
