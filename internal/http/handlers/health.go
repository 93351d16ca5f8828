package handlers

import (
	"net/http"
)

// Health reports liveness and the current queue depth.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"queue_size": a.Queue.Len(),
	})
}
