package http

import (
	"context"
	"net/http"
)

// transcribe upgrades to a WebSocket and hands the connection to the relay. Token checks
// happen after the upgrade so failures can be reported with a close code.
func (s *server) transcribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(s.BaseContext)
	defer cancel()
	stop := context.AfterFunc(r.Context(), cancel)
	defer stop()

	s.Relay.Serve(ctx, conn, r.URL.Query().Get("token"))
}
