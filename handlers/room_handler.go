package handlers

import (
	"errors"
	"net/http"

	"quizroom/services"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	registry  *services.Registry
	snapshots services.SnapshotStore
}

func NewRoomHandler(registry *services.Registry, snapshots services.SnapshotStore) *RoomHandler {
	return &RoomHandler{registry: registry, snapshots: snapshots}
}

type CreateRoomRequest struct {
	CategoryName string `json:"category_name" binding:"required"`
}

// CreateRoom allocates a room and returns its code. The host's persistent
// connection attaches afterwards via the WebSocket endpoint.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.registry.CreateRoom(*identity, req.CategoryName)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room_id": room.Code()})
}

// JoinRoom is the request/response pre-check before the WebSocket join:
// it confirms the room exists and the caller would be admitted.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}

	room, err := h.registry.Resolve(c.Param("roomID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if !room.IsMember(identity.ID) && room.QuestionIndex() > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": services.ErrGameInProgress.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": room.Code()})
}

// StartGame begins play. Host only.
func (h *RoomHandler) StartGame(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}

	room, err := h.registry.Resolve(c.Param("roomID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if err := room.Start(identity.ID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "game started"})
}

// GetRoom serves the latest room snapshot.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	snap, err := h.snapshots.Load(c.Request.Context(), c.Param("roomID"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func mustIdentity(c *gin.Context) *services.Identity {
	value, exists := c.Get("identity")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil
	}
	identity, ok := value.(*services.Identity)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil
	}
	return identity
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidPhase),
		errors.Is(err, services.ErrGameInProgress),
		errors.Is(err, services.ErrAlreadyAnswered),
		errors.Is(err, services.ErrRoomClosed):
		return http.StatusConflict
	case errors.Is(err, services.ErrCapacityExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrQuestionBank):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
