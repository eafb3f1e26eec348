package voice

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lexaid-ai/lexaid/internal/models"
	"github.com/lexaid-ai/lexaid/pkg/cache"
	"github.com/lexaid-ai/lexaid/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const locationTTL = 24 * time.Hour

// CachedLocationSource stores each user's last-known location in the
// shared cache so classifier calls can attach it.
type CachedLocationSource struct {
	cache cache.Cache
}

// NewCachedLocationSource creates a location source over the cache
func NewCachedLocationSource(c cache.Cache) *CachedLocationSource {
	return &CachedLocationSource{cache: c}
}

func locationKey(userID uint) string {
	return fmt.Sprintf("user:%d:location", userID)
}

// LastKnown returns the stored location string, empty when unknown
func (s *CachedLocationSource) LastKnown(ctx context.Context, userID uint) string {
	if s.cache == nil {
		return ""
	}
	if v, ok := s.cache.Get(ctx, locationKey(userID)); ok {
		if loc, ok := v.(string); ok {
			return loc
		}
	}
	return ""
}

// Update stores a fresh location for the user
func (s *CachedLocationSource) Update(ctx context.Context, userID uint, payload LocationUpdatePayload) {
	if s.cache == nil {
		return
	}
	loc := fmt.Sprintf("%.5f,%.5f", payload.Lat, payload.Lon)
	if payload.Label != "" {
		loc = payload.Label + " (" + loc + ")"
	}
	_ = s.cache.Set(ctx, locationKey(userID), loc, locationTTL)
}

// Handler terminates voice WebSocket connections and routes inbound
// events to the registry.
type Handler struct {
	db        *gorm.DB
	registry  *Registry
	locations *CachedLocationSource
	logger    *zap.Logger
}

// NewHandler creates the WebSocket handler
func NewHandler(db *gorm.DB, registry *Registry, locations *CachedLocationSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.L()
	}
	return &Handler{db: db, registry: registry, locations: locations, logger: logger}
}

// Register mounts the voice routes on the router group
func (h *Handler) Register(group *gin.RouterGroup) {
	group.GET("/ws", h.HandleWS)
}

// HandleWS authenticates the request, upgrades it, and runs the read
// loop until the connection drops.
func (h *Handler) HandleWS(c *gin.Context) {
	user, err := h.authenticate(c)
	if err != nil {
		response.Unauthorized(c, "invalid or missing token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	writer := NewConnWriter(conn, h.logger)
	defer writer.Close()
	defer conn.Close()

	h.logger.Info("voice connection opened", zap.Uint("userId", user.ID))
	h.readLoop(c.Request.Context(), conn, writer, user)
}

// authenticate resolves the bearer token from the Authorization header
// or, for browser WebSocket clients that cannot set headers, the token
// query parameter.
func (h *Handler) authenticate(c *gin.Context) (*models.User, error) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		return nil, models.ErrInvalidToken
	}
	return models.GetUserByToken(h.db, token)
}

// readLoop demultiplexes inbound envelopes. All session event handling
// happens on this goroutine, which keeps per-session processing
// strictly sequential.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, writer *ConnWriter, user *models.User) {
	var sessionID string
	defer func() {
		if sessionID != "" {
			h.registry.End(sessionID)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			writer.Send(EventSessionError, SessionErrorPayload{Error: err.Error()})
			continue
		}

		switch env.Type {
		case EventStartSession:
			var payload StartSessionPayload
			if err := env.Decode(&payload); err != nil {
				writer.Send(EventSessionError, SessionErrorPayload{Error: err.Error()})
				continue
			}
			opts := SessionOptions{
				Language:           payload.Language,
				EmergencyDetection: payload.EmergencyDetectionEnabled == nil || *payload.EmergencyDetectionEnabled,
				AudioQuality:       payload.AudioQuality,
			}
			session, err := h.registry.Start(ctx, user.ID, opts, writer)
			if err != nil {
				writer.Send(EventSessionError, SessionErrorPayload{Error: err.Error()})
				continue
			}
			sessionID = session.ID
			writer.Send(EventSessionStarted, SessionStartedPayload{
				SessionID: session.ID,
				Language:  session.Language(),
			})

		case EventAudioChunk:
			session, ok := h.sessionFor(sessionID, writer)
			if !ok {
				continue
			}
			var payload AudioChunkPayload
			if err := env.Decode(&payload); err != nil {
				writer.Send(EventSessionError, SessionErrorPayload{Error: err.Error()})
				continue
			}
			session.HandleAudioChunk(payload.Data, payload.SequenceNumber)

		case EventTextInput:
			session, ok := h.sessionFor(sessionID, writer)
			if !ok {
				continue
			}
			var payload TextInputPayload
			if err := env.Decode(&payload); err != nil {
				writer.Send(EventSessionError, SessionErrorPayload{Error: err.Error()})
				continue
			}
			session.HandleTextInput(payload.Text)

		case EventChangeLanguage:
			session, ok := h.sessionFor(sessionID, writer)
			if !ok {
				continue
			}
			var payload ChangeLanguagePayload
			if err := env.Decode(&payload); err != nil {
				continue
			}
			session.ChangeLanguage(payload.Language)

		case EventQualityReport:
			session, ok := h.sessionFor(sessionID, writer)
			if !ok {
				continue
			}
			var payload QualityReportPayload
			if err := env.Decode(&payload); err != nil {
				continue
			}
			session.ApplyQualityReport(payload)

		case EventLocationUpdate:
			var payload LocationUpdatePayload
			if err := env.Decode(&payload); err != nil {
				continue
			}
			if h.locations != nil {
				h.locations.Update(ctx, user.ID, payload)
			}

		case EventEndSession:
			if sessionID != "" {
				h.registry.End(sessionID)
				sessionID = ""
			}

		default:
			writer.Send(EventSessionError, SessionErrorPayload{Error: "unknown event type: " + env.Type})
		}
	}
}

func (h *Handler) sessionFor(sessionID string, writer *ConnWriter) (*VoiceSession, bool) {
	if sessionID == "" {
		writer.Send(EventSessionError, SessionErrorPayload{Error: ErrSessionNotFound.Error()})
		return nil, false
	}
	session, ok := h.registry.Get(sessionID)
	if !ok {
		writer.Send(EventSessionError, SessionErrorPayload{Error: ErrSessionNotFound.Error()})
		return nil, false
	}
	return session, ok
}
