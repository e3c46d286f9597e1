package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/Interview/internal/app/orch"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const createAttempts = 3

type handlers struct {
	orch *orch.Orchestrator
}

type createSessionRequest struct {
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"duration_seconds" binding:"gte=0"`
	MaxParticipants int    `json:"max_participants" binding:"gte=0"`
}

type sessionResponse struct {
	*domain.InterviewSession
	Status domain.SessionStatus `json:"status"`
}

func toResponse(s *domain.InterviewSession) sessionResponse {
	return sessionResponse{InterviewSession: s, Status: s.Status()}
}

type connectionInfo struct {
	SID         core.SessionID       `json:"sid"`
	State       string               `json:"state"`
	Room        domain.RoomID        `json:"room,omitempty"`
	Participant domain.ParticipantID `json:"participant,omitempty"`
}

func toConnectionInfo(c *core.Connection) connectionInfo {
	info := connectionInfo{SID: c.SID(), State: c.State().String()}
	if room, pid, ok := c.Current(); ok {
		info.Room, info.Participant = room.ID(), pid
	}
	return info
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       h.orch.Rooms.Len(),
		"connections": h.orch.Registry.Len(),
		"joined":      h.orch.Registry.Joined(),
	})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Rooms.List())
}

func (h *handlers) getRoom(c *gin.Context) {
	room, ok := h.orch.Rooms.Get(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrRoomNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, room.Info())
}

func (h *handlers) evictRoom(c *gin.Context) {
	if !h.orch.EvictRoom(domain.RoomID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrRoomNotFound.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listConnections(c *gin.Context) {
	conns := h.orch.Registry.List()
	out := make([]connectionInfo, 0, len(conns))
	for _, cc := range conns {
		out = append(out, toConnectionInfo(cc))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getConnection(c *gin.Context) {
	cc, ok := h.orch.Registry.Get(core.SessionID(c.Param("sid")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}
	c.JSON(http.StatusOK, toConnectionInfo(cc))
}

// kickConnection cancels one socket. The client may reconnect.
func (h *handlers) kickConnection(c *gin.Context) {
	sid := core.SessionID(c.Param("sid"))
	if !h.orch.Registry.Cancel(sid) {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("sid", string(sid)).Msg("connection kicked")
	c.Status(http.StatusNoContent)
}

func (h *handlers) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := h.orch.Rooms.Clock().Now()
	for range createAttempts {
		sess, err := domain.NewInterviewSession(req.Title, req.Description, req.DurationSeconds, req.MaxParticipants, now)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sess.CreatedBy = c.GetString(clientTokenKey)

		err = h.orch.Sessions.Create(c.Request.Context(), sess)
		if errors.Is(err, domain.ErrSessionExists) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("create session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
			return
		}
		log.Info().Str("module", "adapters.http").Str("code", sess.AccessCode).Msg("session created")
		c.JSON(http.StatusCreated, toResponse(sess))
		return
	}
	c.JSON(http.StatusConflict, gin.H{"error": domain.ErrSessionExists.Error()})
}

func (h *handlers) listSessions(c *gin.Context) {
	list, err := h.orch.Sessions.List(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list sessions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list sessions"})
		return
	}
	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toResponse(s))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getSession(c *gin.Context) {
	sess, err := h.orch.Sessions.Get(c.Request.Context(), c.Param("code"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("get session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load session"})
		return
	}
	c.JSON(http.StatusOK, toResponse(sess))
}

// deleteSession ends the live room first, so its members get exit, and
// then drops the record together with the expiry the stop wrote.
func (h *handlers) deleteSession(c *gin.Context) {
	code := c.Param("code")
	ctx := c.Request.Context()
	if _, err := h.orch.Sessions.Get(ctx, code); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("load session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete session"})
		return
	}
	h.orch.EvictRoom(domain.RoomID(code))
	if err := h.orch.Sessions.Delete(ctx, code); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		log.Error().Err(err).Str("module", "adapters.http").Msg("delete session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete session"})
		return
	}
	c.Status(http.StatusNoContent)
}
