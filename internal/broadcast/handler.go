package broadcast

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sermoncast/sermoncast/internal/observability"
	"github.com/sermoncast/sermoncast/internal/shared"
	"github.com/sermoncast/sermoncast/internal/synthesis"
	"github.com/sermoncast/sermoncast/internal/voices"
)

type Handler struct {
	store    *Store
	registry *Registry
	bridge   *Bridge
	synth    synthesis.Synthesizer
	metrics  *observability.Metrics
	log      *slog.Logger
}

func NewHandler(store *Store, registry *Registry, bridge *Bridge, synth synthesis.Synthesizer, metrics *observability.Metrics, log *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		registry: registry,
		bridge:   bridge,
		synth:    synth,
		metrics:  metrics,
		log:      log.With("component", "broadcast_handler"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/start_stream", h.HandleStartStream)
	e.POST("/stop_stream", h.HandleStopStream)
	e.GET("/stream_translation/:language", h.HandleStreamTranslation)
	e.GET("/broadcast_ingest/:id", h.HandleBroadcastIngest)
	e.POST("/publish_translation", h.HandlePublishTranslation)
	e.POST("/synthesize_speech", h.HandleSynthesizeSpeech)
	e.GET("/voices", h.HandleVoices)
	e.POST("/churches", h.HandleCreateChurch)
	e.POST("/broadcasts", h.HandleStartBroadcast)
	e.POST("/broadcasts/:id/end", h.HandleEndBroadcast)
	e.GET("/broadcasts/live", h.HandleLiveBroadcasts)
	e.GET("/broadcasts/:id", h.HandleBroadcastDetail)
}

type lifecycleRequest struct {
	ClientID    string      `json:"clientId"`
	Role        shared.Role `json:"role"`
	BroadcastID string      `json:"broadcastId"`
	ChurchID    string      `json:"churchId"`
}

func (h *Handler) HandleStartStream(c echo.Context) error {
	var req lifecycleRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.ClientID == "" || req.BroadcastID == "" {
		return shared.BadRequest("missing_fields", "clientId and broadcastId are required")
	}

	if _, err := h.store.GetBroadcast(c.Request().Context(), req.BroadcastID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("broadcast_not_found", "no such broadcast")
		}
		return shared.InternalError("store_error", "failed to look up broadcast")
	}

	if err := h.registry.Register(c.Request().Context(), Registration{
		ClientID:    req.ClientID,
		Role:        req.Role,
		BroadcastID: req.BroadcastID,
		ChurchID:    req.ChurchID,
	}); err != nil {
		h.log.Error("failed to register client", "client_id", req.ClientID, "error", err)
		return shared.InternalError("registry_error", "failed to register stream")
	}

	if req.Role == shared.RoleListener {
		h.metrics.ActiveListeners.Inc()
	}
	h.log.Info("stream registered", "client_id", req.ClientID, "broadcast_id", req.BroadcastID, "role", req.Role)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) HandleStopStream(c echo.Context) error {
	var req lifecycleRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.ClientID == "" || req.BroadcastID == "" {
		return shared.BadRequest("missing_fields", "clientId and broadcastId are required")
	}

	reg, err := h.registry.Get(c.Request().Context(), req.BroadcastID, req.ClientID)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("not_registered", "client is not registered")
	}
	if err != nil {
		return shared.InternalError("registry_error", "failed to look up registration")
	}

	if err := h.registry.Deregister(c.Request().Context(), req.BroadcastID, req.ClientID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return shared.InternalError("registry_error", "failed to deregister stream")
	}

	if reg.Role == shared.RoleListener {
		h.metrics.ActiveListeners.Dec()
	}
	h.log.Info("stream deregistered", "client_id", req.ClientID, "broadcast_id", req.BroadcastID)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) HandleStreamTranslation(c echo.Context) error {
	language := c.Param("language")
	clientID := c.QueryParam("client_id")
	broadcastID := c.QueryParam("broadcast_id")
	if language == "" || broadcastID == "" {
		return shared.BadRequest("missing_fields", "language and broadcast_id are required")
	}

	b, err := h.store.GetBroadcast(c.Request().Context(), broadcastID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("broadcast_not_found", "no such broadcast")
		}
		return shared.InternalError("store_error", "failed to look up broadcast")
	}
	if b.Status != shared.BroadcastLive {
		return shared.Conflict("broadcast_ended", "broadcast is no longer live")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	conn, err := NewSSEConn(c.Response(), clientID)
	if err != nil {
		return shared.InternalError("sse_unsupported", "streaming not supported")
	}

	ctx := c.Request().Context()
	fragments, cancel := h.bridge.Subscribe(ctx, broadcastID, language)
	defer cancel()

	go func() {
		for ev := range fragments {
			if err := conn.Send(ctx, ev); err != nil {
				return
			}
			h.metrics.FragmentsRelayed.WithLabelValues(language).Inc()
		}
	}()

	h.log.Info("listener connected", "client_id", clientID, "broadcast_id", broadcastID, "language", language)
	_ = conn.Run(ctx)
	h.log.Info("listener disconnected", "client_id", clientID, "broadcast_id", broadcastID)
	return nil
}

type publishRequest struct {
	BroadcastID string `json:"broadcastId"`
	Language    string `json:"language"`
	Translation string `json:"translation"`
}

func (h *Handler) HandlePublishTranslation(c echo.Context) error {
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.BroadcastID == "" || req.Language == "" || req.Translation == "" {
		return shared.BadRequest("missing_fields", "broadcastId, language and translation are required")
	}

	if err := h.bridge.Publish(c.Request().Context(), req.BroadcastID, req.Language, req.Translation); err != nil {
		h.log.Error("failed to publish fragment", "broadcast_id", req.BroadcastID, "error", err)
		return shared.InternalError("publish_error", "failed to publish translation")
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) HandleSynthesizeSpeech(c echo.Context) error {
	var req synthesis.Request
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.Text == "" || req.Language == "" {
		return shared.BadRequest("missing_fields", "text and language are required")
	}

	if req.VoiceID == "" {
		req.VoiceID = h.resolveVoice(c, req)
	}

	start := time.Now()
	audio, err := h.synth.Synthesize(c.Request().Context(), req)
	h.metrics.ObserveSynthesisLatency(time.Since(start))
	if err != nil {
		h.metrics.SynthesisRequests.WithLabelValues("error").Inc()
		h.log.Error("upstream synthesis failed", "broadcast_id", req.BroadcastID, "error", err)
		return shared.BadGateway("synthesis_failed", "speech synthesis failed")
	}

	h.metrics.SynthesisRequests.WithLabelValues("ok").Inc()
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

// resolveVoice falls back to the static voice table, preferring a voice
// matched to the broadcaster when the broadcast is known.
func (h *Handler) resolveVoice(c echo.Context, req synthesis.Request) string {
	if req.BroadcastID != "" {
		if b, err := h.store.GetBroadcast(c.Request().Context(), req.BroadcastID); err == nil {
			return voices.Resolve(req.Language, b.SourceLanguage, b.BroadcasterGender)
		}
	}
	return voices.Resolve(req.Language, "", "")
}

func (h *Handler) HandleVoices(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"languages": voices.Languages(),
	})
}

type startBroadcastRequest struct {
	ChurchID          string        `json:"churchId"`
	SourceLanguage    string        `json:"sourceLanguage"`
	BroadcasterGender shared.Gender `json:"broadcasterGender,omitempty"`
}

func (h *Handler) HandleStartBroadcast(c echo.Context) error {
	var req startBroadcastRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.ChurchID == "" || req.SourceLanguage == "" {
		return shared.BadRequest("missing_fields", "churchId and sourceLanguage are required")
	}

	if _, err := h.store.GetChurch(c.Request().Context(), req.ChurchID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("church_not_found", "no such church")
		}
		return shared.InternalError("store_error", "failed to look up church")
	}

	b := &Broadcast{
		ChurchID:          req.ChurchID,
		SourceLanguage:    req.SourceLanguage,
		BroadcasterGender: req.BroadcasterGender,
	}
	if err := h.store.StartBroadcast(c.Request().Context(), b); err != nil {
		h.log.Error("failed to start broadcast", "church_id", req.ChurchID, "error", err)
		return shared.InternalError("store_error", "failed to start broadcast")
	}

	h.log.Info("broadcast started", "broadcast_id", b.ID, "church_id", b.ChurchID)
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) HandleEndBroadcast(c echo.Context) error {
	id := c.Param("id")
	err := h.store.EndBroadcast(c.Request().Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("broadcast_not_found", "no such broadcast")
	}
	if errors.Is(err, shared.ErrBroadcastEnded) {
		return shared.Conflict("broadcast_ended", "broadcast already ended")
	}
	if err != nil {
		return shared.InternalError("store_error", "failed to end broadcast")
	}

	h.log.Info("broadcast ended", "broadcast_id", id)
	return c.NoContent(http.StatusOK)
}

type createChurchRequest struct {
	Name            string `json:"name"`
	DefaultLanguage string `json:"defaultLanguage"`
}

func (h *Handler) HandleCreateChurch(c echo.Context) error {
	var req createChurchRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.Name == "" {
		return shared.BadRequest("missing_fields", "name is required")
	}

	church := &Church{
		Name:            req.Name,
		DefaultLanguage: req.DefaultLanguage,
	}
	if church.DefaultLanguage == "" {
		church.DefaultLanguage = "en"
	}
	if err := h.store.CreateChurch(c.Request().Context(), church); err != nil {
		h.log.Error("failed to create church", "name", req.Name, "error", err)
		return shared.InternalError("store_error", "failed to create church")
	}

	h.log.Info("church created", "church_id", church.ID)
	return c.JSON(http.StatusCreated, church)
}

func (h *Handler) HandleBroadcastDetail(c echo.Context) error {
	id := c.Param("id")

	b, err := h.store.GetBroadcast(c.Request().Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("broadcast_not_found", "no such broadcast")
	}
	if err != nil {
		return shared.InternalError("store_error", "failed to look up broadcast")
	}

	listeners, err := h.registry.Count(c.Request().Context(), id)
	if err != nil {
		h.log.Error("failed to count listeners", "broadcast_id", id, "error", err)
		return shared.InternalError("registry_error", "failed to count listeners")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"broadcast": b,
		"listeners": listeners,
	})
}

func (h *Handler) HandleLiveBroadcasts(c echo.Context) error {
	list, err := h.store.LiveBroadcasts(c.Request().Context(), c.QueryParam("church_id"))
	if err != nil {
		return shared.InternalError("store_error", "failed to list broadcasts")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"broadcasts": list,
		"count":      len(list),
	})
}
