package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/signcast/internal/domain"
	apperrors "github.com/pscheid92/signcast/internal/errors"
	"github.com/pscheid92/signcast/internal/feedcache"
	"github.com/pscheid92/signcast/internal/liveness"
	"github.com/pscheid92/signcast/internal/registry"
)

// feedWindowDefault bounds the event window when the caller does not give
// one; slides rarely render beyond the next day.
const feedWindowDefault = 24 * time.Hour

// --- Display handlers ---

type displayResponse struct {
	Name                   string               `json:"name"`
	SlideshowID            *int64               `json:"slideshow_id"`
	State                  domain.LivenessState `json:"state"`
	LastSeenAt             *time.Time           `json:"last_seen_at"`
	ShowOverlay            bool                 `json:"show_overlay"`
	Rotation               int                  `json:"rotation"`
	HeartbeatPeriodSeconds int                  `json:"heartbeat_period_seconds"`
}

func (s *Server) toDisplayResponse(d *domain.Display) displayResponse {
	return displayResponse{
		Name:                   d.Name,
		SlideshowID:            d.SlideshowID,
		State:                  s.deps.Liveness.Status(d),
		LastSeenAt:             d.LastSeenAt,
		ShowOverlay:            d.ShowOverlay,
		Rotation:               d.Rotation,
		HeartbeatPeriodSeconds: int(d.HeartbeatPeriod / time.Second),
	}
}

func (s *Server) handleListDisplays(c echo.Context) error {
	displays, err := s.deps.Displays.List(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list displays", err)
	}

	out := make([]displayResponse, 0, len(displays))
	for i := range displays {
		out = append(out, s.toDisplayResponse(&displays[i]))
	}
	return c.JSON(http.StatusOK, map[string]any{"displays": out})
}

func (s *Server) handleHeartbeat(c echo.Context) error {
	name := c.Param("name")

	display, err := s.deps.Liveness.Heartbeat(c.Request().Context(), name)
	if errors.Is(err, liveness.ErrRateLimited) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "heartbeat rate limited")
	}
	if err != nil {
		return apperrors.InternalError("failed to record heartbeat", err).WithField("display", name)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"display": display.Name,
		"state":   s.deps.Liveness.Status(display),
	})
}

type updateDisplayRequest struct {
	ShowOverlay            bool `json:"show_overlay"`
	Rotation               int  `json:"rotation"`
	HeartbeatPeriodSeconds int  `json:"heartbeat_period_seconds"`
}

func (s *Server) handleUpdateDisplaySettings(c echo.Context) error {
	name := c.Param("name")
	ctx := c.Request().Context()

	var req updateDisplayRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	switch req.Rotation {
	case 0, 90, 180, 270:
	default:
		return apperrors.ValidationError("rotation must be 0, 90, 180 or 270").WithField("rotation", req.Rotation)
	}
	if req.HeartbeatPeriodSeconds < 0 {
		return apperrors.ValidationError("heartbeat period must not be negative")
	}

	display, err := s.deps.Displays.UpdateSettings(ctx, name, domain.DisplaySettings{
		ShowOverlay:     req.ShowOverlay,
		Rotation:        req.Rotation,
		HeartbeatPeriod: time.Duration(req.HeartbeatPeriodSeconds) * time.Second,
	})
	if errors.Is(err, domain.ErrDisplayNotFound) {
		return apperrors.NotFoundError("display not found").WithField("display", name)
	}
	if err != nil {
		return apperrors.InternalError("failed to update display settings", err).WithField("display", name)
	}

	// Notify only after the write is durable.
	if err := s.deps.Broadcaster.Publish(ctx, domain.Event{
		Type:    domain.EventDisplayConfigChanged,
		Display: display.Name,
	}); err != nil {
		return apperrors.InternalError("failed to publish configuration change", err).WithField("display", name)
	}

	return c.JSON(http.StatusOK, s.toDisplayResponse(display))
}

type assignSlideshowRequest struct {
	SlideshowID *int64 `json:"slideshow_id"`
}

func (s *Server) handleAssignSlideshow(c echo.Context) error {
	name := c.Param("name")
	ctx := c.Request().Context()

	var req assignSlideshowRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	var ref *domain.SlideshowRef
	if req.SlideshowID != nil {
		slideshow, err := s.deps.Slideshows.GetByID(ctx, *req.SlideshowID)
		if errors.Is(err, domain.ErrSlideshowNotFound) {
			return apperrors.NotFoundError("slideshow not found").WithField("slideshow_id", *req.SlideshowID)
		}
		if err != nil {
			return apperrors.InternalError("failed to load slideshow", err)
		}
		ref = &domain.SlideshowRef{ID: slideshow.ID, Name: slideshow.Name}
	}

	display, err := s.deps.Displays.AssignSlideshow(ctx, name, req.SlideshowID)
	if errors.Is(err, domain.ErrDisplayNotFound) {
		return apperrors.NotFoundError("display not found").WithField("display", name)
	}
	if err != nil {
		return apperrors.InternalError("failed to assign slideshow", err).WithField("display", name)
	}

	if err := s.deps.Broadcaster.Publish(ctx, domain.Event{
		Type:      domain.EventDisplayAssignmentChanged,
		Display:   display.Name,
		Slideshow: ref,
	}); err != nil {
		return apperrors.InternalError("failed to publish assignment change", err).WithField("display", name)
	}

	return c.JSON(http.StatusOK, s.toDisplayResponse(display))
}

// --- Slideshow handlers ---

type slideshowItemResponse struct {
	Position          int    `json:"position"`
	ContentRef        string `json:"content_ref"`
	DurationSeconds   *int   `json:"duration_seconds"`
	EffectiveDuration int    `json:"effective_duration_seconds"`
}

type slideshowResponse struct {
	ID                     int64                   `json:"id"`
	Name                   string                  `json:"name"`
	DefaultDurationSeconds int                     `json:"default_duration_seconds"`
	Items                  []slideshowItemResponse `json:"items,omitempty"`
}

func toSlideshowResponse(s *domain.Slideshow) slideshowResponse {
	resp := slideshowResponse{
		ID:                     s.ID,
		Name:                   s.Name,
		DefaultDurationSeconds: s.DefaultDuration,
	}
	for _, it := range s.Items {
		resp.Items = append(resp.Items, slideshowItemResponse{
			Position:          it.Position,
			ContentRef:        it.ContentRef,
			DurationSeconds:   it.Duration,
			EffectiveDuration: it.EffectiveDuration(s.DefaultDuration),
		})
	}
	return resp
}

func slideshowIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperrors.ValidationError("invalid slideshow id").WithField("id", c.Param("id"))
	}
	return id, nil
}

func (s *Server) handleListSlideshows(c echo.Context) error {
	slideshows, err := s.deps.Slideshows.List(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list slideshows", err)
	}

	out := make([]slideshowResponse, 0, len(slideshows))
	for i := range slideshows {
		out = append(out, toSlideshowResponse(&slideshows[i]))
	}
	return c.JSON(http.StatusOK, map[string]any{"slideshows": out})
}

func (s *Server) handleGetSlideshow(c echo.Context) error {
	id, err := slideshowIDParam(c)
	if err != nil {
		return err
	}

	slideshow, err := s.deps.Slideshows.GetByID(c.Request().Context(), id)
	if errors.Is(err, domain.ErrSlideshowNotFound) {
		return apperrors.NotFoundError("slideshow not found").WithField("slideshow_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to load slideshow", err)
	}
	return c.JSON(http.StatusOK, toSlideshowResponse(slideshow))
}

type updateSlideshowRequest struct {
	Name                   string `json:"name"`
	DefaultDurationSeconds int    `json:"default_duration_seconds"`
}

func (s *Server) handleUpdateSlideshow(c echo.Context) error {
	id, err := slideshowIDParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var req updateSlideshowRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Name == "" {
		return apperrors.ValidationError("slideshow name cannot be empty")
	}
	if req.DefaultDurationSeconds <= 0 {
		return apperrors.ValidationError("default duration must be positive")
	}

	slideshow, err := s.deps.Slideshows.Update(ctx, id, req.Name, req.DefaultDurationSeconds)
	if errors.Is(err, domain.ErrSlideshowNotFound) {
		return apperrors.NotFoundError("slideshow not found").WithField("slideshow_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to update slideshow", err)
	}

	if err := s.deps.Broadcaster.Publish(ctx, domain.Event{
		Type:      domain.EventSlideshowUpdated,
		Slideshow: &domain.SlideshowRef{ID: slideshow.ID, Name: slideshow.Name},
	}); err != nil {
		return apperrors.InternalError("failed to publish slideshow update", err)
	}

	return c.JSON(http.StatusOK, toSlideshowResponse(slideshow))
}

func (s *Server) handleDeleteSlideshow(c echo.Context) error {
	id, err := slideshowIDParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	// Resolve assignments before the delete: afterwards the displays have
	// already fallen back to no slideshow and the route would select nobody.
	names, err := s.deps.Displays.NamesForSlideshow(ctx, id)
	if err != nil {
		return apperrors.InternalError("failed to resolve assigned displays", err)
	}
	if names == nil {
		names = []string{}
	}

	slideshow, err := s.deps.Slideshows.Delete(ctx, id)
	if errors.Is(err, domain.ErrSlideshowNotFound) {
		return apperrors.NotFoundError("slideshow not found").WithField("slideshow_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to delete slideshow", err)
	}

	evt := domain.Event{
		Type:      domain.EventSlideshowDeleted,
		Slideshow: &domain.SlideshowRef{ID: slideshow.ID, Name: slideshow.Name},
	}
	if err := s.deps.Broadcaster.PublishWithAssignments(ctx, evt, names); err != nil {
		return apperrors.InternalError("failed to publish slideshow deletion", err)
	}

	return c.JSON(http.StatusOK, toSlideshowResponse(slideshow))
}

// --- Feed handlers ---

func (s *Server) handleFeedEvents(c echo.Context) error {
	feedURL := c.QueryParam("url")
	if feedURL == "" {
		return apperrors.ValidationError("url query parameter is required")
	}

	staleness := s.config.DefaultFeedStaleness
	if raw := c.QueryParam("staleness"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			return apperrors.ValidationError("invalid staleness duration").WithField("staleness", raw)
		}
		staleness = parsed
	}

	window, err := s.feedWindow(c)
	if err != nil {
		return err
	}

	events, err := s.deps.Feeds.Events(c.Request().Context(), feedURL, staleness, window)
	if err != nil {
		return apperrors.ExternalError("failed to load feed events", err).WithField("feed_url", feedURL)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"events":      events,
		"by_resource": feedcache.GroupByResource(events),
	})
}

func (s *Server) feedWindow(c echo.Context) (feedcache.Window, error) {
	now := s.deps.Clock.Now()
	window := feedcache.Window{From: now, To: now.Add(feedWindowDefault)}

	if raw := c.QueryParam("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return feedcache.Window{}, apperrors.ValidationError("invalid from timestamp").WithField("from", raw)
		}
		window.From = from
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return feedcache.Window{}, apperrors.ValidationError("invalid to timestamp").WithField("to", raw)
		}
		window.To = to
	}
	if !window.To.After(window.From) {
		return feedcache.Window{}, apperrors.ValidationError("window end must be after window start")
	}
	return window, nil
}

func (s *Server) handleRefreshFeeds(c echo.Context) error {
	summary := s.deps.Feeds.RefreshAll(c.Request().Context())
	return c.JSON(http.StatusOK, summary)
}

// --- Diagnostics ---

type systemTestRequest struct {
	ConnectionID string `json:"connection_id"`
	Message      string `json:"message"`
}

func (s *Server) handleSystemTest(c echo.Context) error {
	var req systemTestRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	connID, err := uuid.Parse(req.ConnectionID)
	if err != nil {
		return apperrors.ValidationError("invalid connection id").WithField("connection_id", req.ConnectionID)
	}
	if _, ok := s.deps.Registry.Get(connID); !ok {
		return apperrors.NotFoundError("connection not found").WithField("connection_id", req.ConnectionID)
	}

	message := req.Message
	if message == "" {
		message = "test notification"
	}

	if err := s.deps.Broadcaster.Publish(c.Request().Context(), domain.Event{
		Type:    domain.EventSystemTest,
		Message: message,
		Origin:  connID,
	}); err != nil {
		return apperrors.InternalError("failed to publish test event", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type connectionStats struct {
	ID             string    `json:"id"`
	Scope          string    `json:"scope"`
	Display        string    `json:"display,omitempty"`
	OpenedAt       time.Time `json:"opened_at"`
	EventsSent     int64     `json:"events_sent"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// handleStats reports exact open-connection counts and per-display health.
// A failure loading displays is a 500 with an error body: an empty but
// well-formed response would be indistinguishable from "nothing connected".
func (s *Server) handleStats(c echo.Context) error {
	displays, err := s.deps.Displays.List(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to compute stats", err)
	}

	counts := s.deps.Registry.CountByScope()

	conns := s.deps.Registry.List(registry.Filter{})
	connections := make([]connectionStats, 0, len(conns))
	for _, conn := range conns {
		connections = append(connections, connectionStats{
			ID:             conn.ID.String(),
			Scope:          string(conn.Scope),
			Display:        conn.Display,
			OpenedAt:       conn.OpenedAt,
			EventsSent:     conn.EventsSent(),
			LastActivityAt: conn.LastActivityAt(),
		})
	}

	displayStates := make([]displayResponse, 0, len(displays))
	for i := range displays {
		displayStates = append(displayStates, s.toDisplayResponse(&displays[i]))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"console":     counts.Console,
		"display":     counts.Display,
		"connections": connections,
		"displays":    displayStates,
	})
}
