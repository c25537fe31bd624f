package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/medisearch/catalog"
	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/identity"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
	"github.com/giygas/medisearch/search"
	"github.com/giygas/medisearch/session"
	"github.com/giygas/medisearch/storage"
	"github.com/giygas/medisearch/validation"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// Dependencies are the collaborators of the handlers
type Dependencies struct {
	Engine      *search.Engine
	Catalog     interfaces.CatalogStore
	Gate        *session.Gate
	Form        *session.Form
	Preferences interfaces.PreferenceStore
	Health      interfaces.HealthChecker

	// SearchMaxLength caps a search fragment in characters
	SearchMaxLength int
}

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	engine      *search.Engine
	catalog     interfaces.CatalogStore
	gate        *session.Gate
	form        *session.Form
	preferences interfaces.PreferenceStore
	health      interfaces.HealthChecker
	maxFragment int
	startTime   time.Time
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(deps Dependencies) *HTTPHandlerImpl {
	maxFragment := deps.SearchMaxLength
	if maxFragment <= 0 {
		maxFragment = 100
	}
	return &HTTPHandlerImpl{
		engine:      deps.Engine,
		catalog:     deps.Catalog,
		gate:        deps.Gate,
		form:        deps.Form,
		preferences: deps.Preferences,
		health:      deps.Health,
		maxFragment: maxFragment,
		startTime:   time.Now(),
	}
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Mode     string `json:"mode"`
}

type fragmentRequest struct {
	Fragment string `json:"fragment"`
}

type voiceRequest struct {
	Transcript string `json:"transcript"`
}

type themeRequest struct {
	Dark *bool `json:"dark"`
}

// searchResponse is a result set and whether it became the displayed one
type searchResponse struct {
	Result  search.ResultSet `json:"result"`
	Applied bool             `json:"applied"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Uptime        string         `json:"uptime"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// AuthView returns the state of the authentication form
func (h *HTTPHandlerImpl) AuthView(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"view":    "auth",
		"form":    h.form.View(),
		"session": h.gate.State(),
	})
}

// SubmitAuth validates and submits the sign-in or sign-up form
func (h *HTTPHandlerImpl) SubmitAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Mode must be signIn or signUp")
		return
	}

	h.form.SetMode(mode)
	h.form.SetEmail(req.Email)
	h.form.SetPassword(req.Password)

	signedIn, err := h.form.Submit(r.Context())
	if err == nil {
		view := h.form.View()
		RespondWithJSON(w, http.StatusOK, map[string]any{
			"notice":   view.Notice,
			"identity": signedIn,
			"form":     view,
			"redirect": session.RootPath,
		})
		return
	}

	var fieldErr *validation.FieldError
	switch {
	case errors.Is(err, session.ErrSubmitting):
		RespondWithError(w, http.StatusConflict, "A submission is already in progress")
	case errors.As(err, &fieldErr):
		body := errorBody(http.StatusBadRequest, fieldErr.Message)
		body["form"] = h.form.View()
		RespondWithJSON(w, http.StatusBadRequest, body)
	default:
		view := h.form.View()
		code := statusForReason(identity.ReasonOf(err))
		body := errorBody(code, view.ServiceError)
		body["form"] = view
		RespondWithJSON(w, code, body)
	}
}

// statusForReason maps an identity failure to an HTTP status
func statusForReason(reason identity.Reason) int {
	switch reason {
	case identity.ReasonEmailInUse:
		return http.StatusConflict
	case identity.ReasonInvalidEmail, identity.ReasonWeakPassword:
		return http.StatusUnprocessableEntity
	case identity.ReasonUserNotFound, identity.ReasonWrongPassword:
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

// Home returns the protected root: who is signed in, the theme and the
// displayed search result
func (h *HTTPHandlerImpl) Home(w http.ResponseWriter, r *http.Request) {
	dark, err := h.preferences.GetBool(r.Context(), storage.ThemeKey)
	if err != nil {
		logging.Warn("Failed to read theme preference", "error", err)
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"view":     "home",
		"identity": h.gate.State().Identity,
		"theme":    map[string]bool{"dark": dark},
		"search":   displayed(h.engine.Current()),
		"notice":   h.form.View().Notice,
	})
}

// displayed gives the zero result set an empty item list
func displayed(rs search.ResultSet) search.ResultSet {
	if rs.Items == nil {
		rs.Items = []entities.MedicineRecord{}
	}
	return rs
}

// Search evaluates q synchronously. The evaluation outlives a client abort
// so a dropped request never installs a Miss; the engine timeout bounds it.
func (h *HTTPHandlerImpl) Search(w http.ResponseWriter, r *http.Request) {
	fragment := r.URL.Query().Get("q")
	if err := validation.ValidateFragment(fragment, h.maxFragment); err != nil {
		logging.Warn("Unusual user input", "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, applied := h.engine.Search(context.WithoutCancel(r.Context()), fragment)
	RespondWithJSON(w, http.StatusOK, searchResponse{Result: result, Applied: applied})
}

// SearchInput takes one keystroke worth of input and evaluates it in the
// background
func (h *HTTPHandlerImpl) SearchInput(w http.ResponseWriter, r *http.Request) {
	var req fragmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.ValidateFragment(req.Fragment, h.maxFragment); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	generation := h.engine.Input(req.Fragment)
	RespondWithJSON(w, http.StatusAccepted, map[string]any{"generation": generation})
}

// VoiceSearch feeds a recognised utterance through the search path
func (h *HTTPHandlerImpl) VoiceSearch(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.ValidateFragment(req.Transcript, h.maxFragment); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	voice := search.NewVoiceInput(search.Transcript(req.Transcript), h.engine)
	result, applied, err := voice.Listen(context.WithoutCancel(r.Context()))
	if err != nil {
		logging.Warn("Voice input failed", "error", err)
		RespondWithError(w, http.StatusUnprocessableEntity, "Speech could not be recognised")
		return
	}

	RespondWithJSON(w, http.StatusOK, searchResponse{Result: result, Applied: applied})
}

// CurrentSearch returns the displayed result set
func (h *HTTPHandlerImpl) CurrentSearch(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, displayed(h.engine.Current()))
}

// MedicineDetail returns one record, its dose steps and the other records of
// the same brand
func (h *HTTPHandlerImpl) MedicineDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateRecordID(id); err != nil {
		logging.Warn("Unusual user input", "id", id, "error", err)
		RespondWithError(w, http.StatusBadRequest, "Invalid medicine id")
		return
	}

	record, err := h.catalog.GetByID(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		RespondWithError(w, http.StatusNotFound, "Medicine Not Found")
		return
	}
	if err != nil {
		logging.Error("Failed to load medicine", "id", id, "error", err)
		RespondWithError(w, http.StatusServiceUnavailable, "Catalog unavailable")
		return
	}

	related, err := catalog.RelatedByBrand(r.Context(), h.catalog, record)
	if err != nil {
		// The detail is still useful without related items
		logging.Warn("Failed to load related medicines", "id", id, "brand", record.Brand, "error", err)
		related = []entities.MedicineRecord{}
	}

	steps := catalog.SplitDoseIndication(record.DoseIndication)
	if steps == nil {
		steps = []string{}
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"medicine":   record,
		"dose_steps": steps,
		"related":    related,
	})
}

// SignOut ends the session
func (h *HTTPHandlerImpl) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.SignOut(r.Context()); err != nil {
		logging.Error("Sign-out failed", "error", err)
		RespondWithError(w, http.StatusBadGateway, session.MessageOther)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{"redirect": session.LoginPath})
}

// GetTheme returns the dark theme preference
func (h *HTTPHandlerImpl) GetTheme(w http.ResponseWriter, r *http.Request) {
	dark, err := h.preferences.GetBool(r.Context(), storage.ThemeKey)
	if err != nil {
		logging.Error("Failed to read theme preference", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to read preference")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]bool{"dark": dark})
}

// SetTheme stores the dark theme preference
func (h *HTTPHandlerImpl) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Dark == nil {
		RespondWithError(w, http.StatusBadRequest, "Body must be {\"dark\": true|false}")
		return
	}

	if err := h.preferences.SetBool(r.Context(), storage.ThemeKey, *req.Dark); err != nil {
		logging.Error("Failed to store theme preference", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to store preference")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]bool{"dark": *req.Dark})
}

// HealthCheck returns service health with runtime statistics
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.health.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := time.Since(h.startTime)

	RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		UptimeSeconds: uptime.Seconds(),
		Uptime:        formatUptimeHuman(uptime),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	})
}
