package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/jfmyers9/slackfm/internal/link"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 32rem; margin: 4rem auto; text-align: center; color: #222; }
h1 { font-size: 1.5rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

type page struct {
	Title   string
	Message string
}

var (
	pageLinked = page{
		Title:   "Last.fm linked",
		Message: "Your Last.fm account has been linked. You can close this tab and return to Slack.",
	}
	pageInvalid = page{
		Title:   "Invalid or expired link",
		Message: "This link is invalid or has expired. Run /linklastfm in Slack to get a new one.",
	}
	pageFailed = page{
		Title:   "Something went wrong",
		Message: "We couldn't finish linking your Last.fm account. Run /linklastfm in Slack to try again.",
	}
)

func writePage(w http.ResponseWriter, r *http.Request, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, p); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to render page")
	}
}

// handleCallback redeems a link. Accepts user_id as an alias of
// slack_user_id.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := link.RedeemRequest{
		Token:       q.Get("token"),
		UserID:      q.Get("slack_user_id"),
		WorkspaceID: q.Get("workspace_id"),
		State:       q.Get("state"),
	}
	if req.UserID == "" {
		req.UserID = q.Get("user_id")
	}

	log := hlog.FromRequest(r)

	id, err := s.redeemer.Redeem(r.Context(), req)
	switch {
	case err == nil:
		log.Info().Str("user", id.UserID).Str("workspace", id.WorkspaceID).Msg("Link callback succeeded")
		writePage(w, r, http.StatusOK, pageLinked)
	case errors.Is(err, link.ErrInvalidRequest), errors.Is(err, link.ErrInvalidOrExpired):
		log.Info().Err(err).Msg("Link callback rejected")
		writePage(w, r, http.StatusBadRequest, pageInvalid)
	default:
		log.Error().Err(err).Msg("Link callback failed")
		writePage(w, r, http.StatusInternalServerError, pageFailed)
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
	Database  string    `json:"database,omitempty"`
}

// handleHealth reports liveness. Uptime is in seconds.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	resp := healthResponse{
		Status:    "ok",
		Timestamp: now.UTC(),
		Uptime:    now.Sub(s.started).Seconds(),
	}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("Database ping failed")
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
