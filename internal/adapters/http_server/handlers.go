package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"nomad_match/internal/adapters/observability"
	"nomad_match/internal/app"
	"nomad_match/internal/domain"
)

type Handlers struct {
	Match    *app.MatchService
	Sessions *app.SessionManager
	Backend  domain.Backend
	FeedSize int
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", h.health)

	s.mux.Post("/v1/auth/register", h.register)
	s.mux.Post("/v1/auth/login", h.login)
	s.mux.Get("/v1/auth/me", h.me)
	s.mux.Post("/v1/auth/upgrade", h.upgrade)

	s.mux.Post("/v1/matches", h.findMatches)
	s.mux.Get("/v1/feed", h.feed)
	s.mux.Get("/v1/favorites", h.favorites)
	s.mux.Post("/v1/preferences/toggle", h.toggle)
	s.mux.Post("/v1/advice", h.advice)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeJSONCacheable serves a GET whose payload only changes when the
// underlying state does: a matching If-None-Match short-circuits with 304.
func writeJSONCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if etag == "" {
		writeJSON(w, http.StatusOK, v)
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeUpstreamErr maps backend failures onto our status codes. An invalid
// token clears the local session so the client falls back to logged-out.
func (h *Handlers) writeUpstreamErr(w http.ResponseWriter, token string, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		h.Sessions.Drop(token)
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "session expired, log in again")
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		writeProblem(w, http.StatusBadGateway, "Backend Error", err.Error())
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// session resolves the request's bearer token to a session, writing the
// error response itself when that fails.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*app.Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
		return nil, false
	}
	sess, err := h.Sessions.Resolve(r.Context(), token)
	if err != nil {
		h.writeUpstreamErr(w, token, err)
		return nil, false
	}
	return sess, true
}

// ---- health ----

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "backend": "unreachable"}
	if status, err := h.Backend.Health(r.Context()); err == nil {
		resp["backend"] = status
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- auth ----

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) { h.authenticate(w, r, true) }
func (h *Handlers) login(w http.ResponseWriter, r *http.Request)    { h.authenticate(w, r, false) }

func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request, register bool) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "email and password are required")
		return
	}

	call := h.Backend.Login
	if register {
		call = h.Backend.Register
	}
	tok, err := call(r.Context(), creds.Email, creds.Password)
	if err != nil {
		h.writeUpstreamErr(w, "", err)
		return
	}

	// Seed the session: the remote preference snapshot becomes the feed's
	// hidden set from the first search on.
	h.Sessions.Init(r.Context(), tok.AccessToken, creds.Email, tok.IsPremium)
	writeJSON(w, http.StatusOK, tok)
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, domain.UserInfo{Email: sess.Email, IsPremium: sess.Premium})
}

func (h *Handlers) upgrade(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.Backend.Upgrade(r.Context(), sess.Token); err != nil {
		h.writeUpstreamErr(w, sess.Token, err)
		return
	}
	h.Sessions.SetPremium(sess.Token)
	writeJSON(w, http.StatusOK, map[string]any{"is_premium": true})
}

// ---- matching ----

type matchRequest struct {
	Budget  string   `json:"budget"`
	Climate string   `json:"climate"`
	Visa    bool     `json:"visa"`
	Vibes   []string `json:"vibes"`
}

func (req matchRequest) preferences() domain.UserPreferenceSet {
	p := domain.UserPreferenceSet{
		Budget:     domain.Budget(req.Budget),
		Climate:    domain.Climate(req.Climate),
		VisaNeeded: req.Visa,
		Vibes:      req.Vibes,
	}
	if p.Budget == "" {
		p.Budget = domain.BudgetModerate
	}
	if p.Climate == "" {
		p.Climate = domain.ClimateWarm
	}
	return p
}

type feedResponse struct {
	Cities      []domain.ScoredCity `json:"cities"`
	Total       int                 `json:"total"`
	EmptyReason domain.EmptyReason  `json:"empty_reason,omitempty"`
}

func (h *Handlers) feedResponse(comp app.Composition) feedResponse {
	return feedResponse{
		Cities:      comp.Top(h.FeedSize),
		Total:       len(comp.Visible),
		EmptyReason: comp.EmptyReason,
	}
}

func (h *Handlers) findMatches(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "malformed preferences payload")
		return
	}
	prefs := req.preferences()
	switch prefs.Climate {
	case domain.ClimateWarm, domain.ClimateMild, domain.ClimateCool:
	default:
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "climate must be warm, mild or cool")
		return
	}

	// Anonymous callers get a ranking pass without persisted preferences.
	var sess *app.Session
	if token := bearerToken(r); token != "" {
		var err error
		if sess, err = h.Sessions.Resolve(r.Context(), token); err != nil {
			h.writeUpstreamErr(w, token, err)
			return
		}
	}

	comp, err := h.Match.FindMatches(r.Context(), sess, prefs)
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Backend Error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.feedResponse(comp))
}

func (h *Handlers) feed(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	comp, has := sess.Feed()
	if !has {
		writeProblem(w, http.StatusConflict, "No Ranking", "run a search before requesting the feed")
		return
	}
	writeJSONCacheable(w, r, h.feedResponse(comp))
}

func (h *Handlers) favorites(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSONCacheable(w, r, map[string]any{"favorites": h.Match.Favorites(sess)})
}

// ---- preferences ----

type toggleRequest struct {
	CityName string                  `json:"city_name"`
	Action   domain.PreferenceAction `json:"action"`
}

func (h *Handlers) toggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CityName == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "city_name and action are required")
		return
	}

	state, err := sess.Toggler.Toggle(r.Context(), req.CityName, req.Action)
	if err != nil {
		observability.ObserveToggle(string(req.Action), "error")
		// Local state was rolled back; the client may retry.
		h.writeUpstreamErr(w, sess.Token, err)
		return
	}
	observability.ObserveToggle(string(req.Action), "ok")
	writeJSON(w, http.StatusOK, map[string]any{"city_name": req.CityName, "state": state})
}

// ---- premium ----

type adviceRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

func (h *Handlers) advice(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if !sess.Premium {
		writeProblem(w, http.StatusForbidden, "Premium Required", "upgrade to access tailored advice")
		return
	}

	var req adviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "malformed advice payload")
		return
	}
	if req.Query == "" {
		prefs, has := sess.LastPreferences()
		if !has {
			writeProblem(w, http.StatusBadRequest, "Invalid Request", "query is required before the first search")
			return
		}
		req.Query = app.BuildQuery(prefs)
	}
	if req.NumResults <= 0 {
		req.NumResults = 5
	}

	res, err := h.Backend.Advice(r.Context(), sess.Token, req.Query, req.NumResults)
	if err != nil {
		h.writeUpstreamErr(w, sess.Token, err)
		return
	}
	cities := app.NormalizeAll(res.Hits)
	writeJSON(w, http.StatusOK, map[string]any{"advice": res.Advice, "cities": cities})
}
