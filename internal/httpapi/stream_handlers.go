package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"condominio.app/internal/auth"
	"condominio.app/internal/obs"
)

const streamHeartbeat = 25 * time.Second

// handleAnnouncementStream pushes newly published announcements of one
// condominium as Server-Sent Events.
func (a *API) handleAnnouncementStream(w http.ResponseWriter, r *http.Request) {
	condoID, ok := pathID(r, "condoID")
	if !ok {
		invalidInput(w, r, "invalid condominium id")
		return
	}
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceAnnouncement}, auth.OpRead) {
		return
	}
	// existence check; the snapshot itself is served by the list endpoint
	if _, err := a.condo.Announcements(r.Context(), condoID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		obs.From(r.Context()).Debug("stream write deadline not cleared", zap.Error(err))
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := a.events.Subscribe(r.Context(), condoID)

	_, _ = w.Write([]byte(": stream started\n\n"))
	if err := rc.Flush(); err != nil {
		obs.From(r.Context()).Warn("streaming unsupported", zap.Error(err))
		return
	}

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("event: " + evt.Kind + "\ndata: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
