package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// transparentGIF is a single-pixel transparent GIF, the smallest valid image
// that satisfies every mail client's <img> tag.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00,
	0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02,
	0x44, 0x01, 0x00, 0x3b,
}

// handleFollowUpTrack responds with the tracking pixel and marks the
// follow-up opened, best-effort. Per spec §4.10 this endpoint must never
// 5xx: any repository error is swallowed after the image has already been
// written.
func (s *Server) handleFollowUpTrack(w http.ResponseWriter, r *http.Request) {
	trackingID := mux.Vars(r)["id"]

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(transparentGIF)

	if trackingID == "" {
		return
	}
	if err := s.Repo.MarkFollowUpOpened(r.Context(), trackingID, time.Now().UTC().Format("2006-01-02 15:04:05")); err != nil {
		logErrf("httpapi: failed to mark follow-up %s opened: %v", trackingID, err)
	}
}
