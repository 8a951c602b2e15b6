package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/brightears/bmasia-music-brief/internal/approval"
	"github.com/brightears/bmasia-music-brief/internal/brief"
	"github.com/brightears/bmasia-music-brief/internal/daypart"
	"github.com/brightears/bmasia-music-brief/internal/domain"
)

// submitRequest mirrors the wire fields in spec §6.2's submit payload. Only
// the fields this pipeline actually consumes are modeled; anything else the
// client sends rides along inside RawData for the record.
type submitRequest struct {
	VenueName           string   `json:"venueName"`
	VenueType           string   `json:"venueType"`
	Location            string   `json:"location"`
	ContactName         string   `json:"contactName"`
	ContactEmail        string   `json:"contactEmail"`
	ContactPhone        string   `json:"contactPhone"`
	Product             string   `json:"product"`
	LikedPlaylists      []string `json:"likedPlaylists"`
	WeekendLikedPlaylists []string `json:"weekendLikedPlaylists"`
	DaypartsMetadata    []daypart.Daypart `json:"daypartsMetadata"`
	WeekendDayparts     []daypart.Daypart `json:"weekendDayparts"`
	ConversationSummary string   `json:"conversationSummary"`
	MultiZone           bool     `json:"multiZone"`
	ZoneNames           []string `json:"zoneNames"`
	SYBAccountID        string   `json:"sybAccountId"`
	Website             string   `json:"website"` // honeypot

	// playlist names, keyed positionally with LikedPlaylists/WeekendLikedPlaylists
	// when present; absent entries fall back to the playlist id as the name.
	LikedPlaylistNames        []string `json:"likedPlaylistNames"`
	WeekendLikedPlaylistNames []string `json:"weekendLikedPlaylistNames"`
}

// toScheduleData builds this pipeline's per-zone schedule representation
// from the flat wire payload. Per an explicit design decision (see
// DESIGN.md), a multi-zone submission shares one daypart/liked-playlist
// layout across every named zone — the spec's wire format never specifies a
// per-zone slicing of daypartsMetadata/likedPlaylists, so zone-specific
// differentiation happens at the approval-page zone-mapping step instead.
func (req submitRequest) toScheduleData() brief.ScheduleData {
	liked := zipPicks(req.DaypartsMetadata, req.LikedPlaylists, req.LikedPlaylistNames)
	weekendLiked := zipPicks(req.WeekendDayparts, req.WeekendLikedPlaylists, req.WeekendLikedPlaylistNames)

	zoneNames := req.ZoneNames
	if len(zoneNames) == 0 {
		zoneNames = []string{"default"}
	}

	zones := make([]brief.ZoneSchedule, 0, len(zoneNames))
	for _, name := range zoneNames {
		zones = append(zones, brief.ZoneSchedule{
			ZoneName:     name,
			Dayparts:     req.DaypartsMetadata,
			Liked:        liked,
			WeekendLiked: weekendLiked,
		})
	}

	return brief.ScheduleData{MultiZone: req.MultiZone, ZoneNames: zoneNames, Zones: zones}
}

func zipPicks(dayparts []daypart.Daypart, playlistIDs, names []string) map[string]brief.PlaylistPick {
	if len(dayparts) == 0 || len(playlistIDs) == 0 {
		return nil
	}
	out := make(map[string]brief.PlaylistPick, len(dayparts))
	for i, dp := range dayparts {
		if i >= len(playlistIDs) {
			break
		}
		pick := brief.PlaylistPick{PlaylistID: playlistIDs[i]}
		if i < len(names) {
			pick.PlaylistName = names[i]
		} else {
			pick.PlaylistName = playlistIDs[i]
		}
		out[dp.Key] = pick
	}
	return out
}

// handleSubmit creates a brief and triggers the approval flow, per spec
// §4.11. A non-empty honeypot field is a silent discard: respond 200 without
// ever touching the repository, so a bot filling every field never learns
// it was rejected.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Website != "" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
		return
	}
	if req.VenueName == "" {
		writeJSONError(w, http.StatusBadRequest, "venueName is required")
		return
	}

	product := domain.ProductSYB
	if req.Product == string(domain.ProductBeatbreeze) {
		product = domain.ProductBeatbreeze
	}

	raw, _ := json.Marshal(req)

	result, err := s.Approval.Submit(r.Context(), approval.SubmitInput{
		VenueName:           req.VenueName,
		VenueType:           req.VenueType,
		Location:            req.Location,
		ContactName:         req.ContactName,
		ContactEmail:        req.ContactEmail,
		ContactPhone:        req.ContactPhone,
		Product:             product,
		LikedPlaylistIDs:    req.LikedPlaylists,
		ConversationSummary: req.ConversationSummary,
		RawData:             raw,
		Schedule:            req.toScheduleData(),
		SYBAccountID:        req.SYBAccountID,
	})
	if err != nil {
		logErrf("httpapi: submit failed for venue %q: %v", req.VenueName, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to process submission")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":       true,
		"briefId":       result.BriefID,
		"autoScheduled": result.AutoScheduled,
	})
}
