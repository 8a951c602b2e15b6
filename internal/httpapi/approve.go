package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/brightears/bmasia-music-brief/internal/approval"
)

type approvePageData struct {
	VenueName string
	Token     string
	Choices   []approval.ZoneChoice
	Error     string
}

type tokenInvalidData struct {
	Reason string
}

// handleApproveGet renders the zone-mapping form, or an explanatory page
// when the token is unusable, per spec §4.8.
func (s *Server) handleApproveGet(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	_, b, status, err := s.Approval.CheckToken(r.Context(), token)
	if err != nil {
		logErrf("httpapi: check token failed: %v", err)
		s.renderTokenInvalid(w, "Something went wrong loading this link. Please ask BMAsia to resend it.")
		return
	}
	switch status {
	case approval.TokenNotFound:
		s.renderTokenInvalid(w, "We couldn't find this approval link.")
		return
	case approval.TokenExpired:
		s.renderTokenInvalid(w, "This approval link has expired. Please ask BMAsia to resend it.")
		return
	case approval.TokenUsed:
		s.renderTokenInvalid(w, "This brief has already been approved.")
		return
	}

	choices, err := s.Approval.ZoneChoicesForBrief(r.Context(), b)
	if err != nil {
		logErrf("httpapi: zone choice discovery failed: %v", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = s.tmpl.ExecuteTemplate(w, "approve.tmpl", approvePageData{
		VenueName: b.VenueName,
		Token:     token,
		Choices:   choices,
	})
}

// handleApprovePost binds the operator's zone selections and runs the
// approval transaction, per spec §4.8/§4.9 design note.
func (s *Server) handleApprovePost(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid form submission")
		return
	}

	selections := make(map[string]string)
	for key, values := range r.Form {
		if !strings.HasPrefix(key, "zone:") || len(values) == 0 {
			continue
		}
		zoneKey := strings.TrimPrefix(key, "zone:")
		if v := strings.TrimSpace(values[0]); v != "" {
			selections[zoneKey] = v
		}
	}

	// Load the brief before attempting the transaction: on success the
	// token is consumed, and CheckToken no longer returns the brief for an
	// already-used token.
	_, b, _, checkErr := s.Approval.CheckToken(r.Context(), token)
	venueName := ""
	if checkErr == nil && b != nil {
		venueName = b.VenueName
	}

	err := s.Approval.Approve(r.Context(), approval.ApproveInput{Token: token, Selections: selections})
	if err != nil {
		logErrf("httpapi: approve failed for token %s: %v", token, err)
		var choices []approval.ZoneChoice
		if checkErr == nil && b != nil {
			choices, _ = s.Approval.ZoneChoicesForBrief(r.Context(), b)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = s.tmpl.ExecuteTemplate(w, "approve.tmpl", approvePageData{
			VenueName: venueName,
			Token:     token,
			Choices:   choices,
			Error:     "Approval failed: please double-check the zone ids and try again.",
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = s.tmpl.ExecuteTemplate(w, "approved.tmpl", map[string]string{"VenueName": venueName})
}

func (s *Server) renderTokenInvalid(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = s.tmpl.ExecuteTemplate(w, "token_invalid.tmpl", tokenInvalidData{Reason: reason})
}
