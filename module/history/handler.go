package history

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/harbor-im/harbor/logger"
	"github.com/harbor-im/harbor/middleware"
	"github.com/harbor-im/harbor/service/storage"
	"github.com/harbor-im/harbor/tools/errs"
)

// Handler serves read-only message history, oldest first. Writes go through
// the gateway only.
type Handler struct {
	store    storage.Store
	pageSize int
}

func NewHandler(store storage.Store, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Handler{store: store, pageSize: pageSize}
}

// Register mounts the history routes behind the bearer-auth middleware.
func (h *Handler) Register(r gin.IRouter, auth gin.HandlerFunc) {
	api := r.Group("/api", auth)
	api.GET("/messages/direct/:userID", h.directHistory)
	api.GET("/messages/group/:groupID", h.groupHistory)
}

// directHistory returns the conversation between the caller and the named
// counterpart.
func (h *Handler) directHistory(c *gin.Context) {
	me := middleware.UserID(c)
	other := c.Param("userID")

	if _, err := h.store.GetUser(c.Request.Context(), other); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errs.ErrRecipientNotFound)
			return
		}
		logger.Errorf("[history] resolve user %s: %v", other, err)
		c.Status(http.StatusInternalServerError)
		return
	}

	msgs, err := h.store.DirectHistory(c.Request.Context(), me, other, h.pageSize)
	if err != nil {
		logger.Errorf("[history] direct %s<->%s: %v", me, other, err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []storage.DirectMessage{}
	}
	c.JSON(http.StatusOK, msgs)
}

// groupHistory returns a group's messages; only members may read them.
func (h *Handler) groupHistory(c *gin.Context) {
	me := middleware.UserID(c)
	groupID := c.Param("groupID")

	if _, err := h.store.GetGroup(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errs.ErrGroupNotFound)
			return
		}
		logger.Errorf("[history] resolve group %s: %v", groupID, err)
		c.Status(http.StatusInternalServerError)
		return
	}
	isMember, err := h.store.IsMember(c.Request.Context(), groupID, me)
	if err != nil {
		logger.Errorf("[history] check membership group=%s user=%s: %v", groupID, me, err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, errs.ErrNotGroupMember)
		return
	}

	msgs, err := h.store.GroupHistory(c.Request.Context(), groupID, h.pageSize)
	if err != nil {
		logger.Errorf("[history] group %s: %v", groupID, err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []storage.GroupMessage{}
	}
	c.JSON(http.StatusOK, msgs)
}
