package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/decinco/miniworld/internal/miniature"
	"github.com/decinco/miniworld/internal/multiverse"
	"github.com/decinco/miniworld/internal/world"
	"github.com/gin-gonic/gin"
)

// GenericResponse представляет общий формат ответа API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type createWorldRequest struct {
	Name string `json:"name" binding:"required"`
}

type createMiniatureRequest struct {
	Source string `json:"source" binding:"required"`
	Linked bool   `json:"linked"`
}

// handleCreateWorld создаёт пустой мир с одной платформой
func (rs *RestServer) handleCreateWorld(c *gin.Context) {
	var req createWorldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}

	w, err := rs.miniatures.CreateEmptyWorld(c.Request.Context(), req.Name)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("World %s created.", w.Name()),
		Data:    gin.H{"name": w.Name()},
	})
}

// handleCreateMiniature создаёт индексированную или связанную миниатюру
func (rs *RestServer) handleCreateMiniature(c *gin.Context) {
	var req createMiniatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}

	source, ok := rs.miniatures.Lookup(req.Source)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "could not find that world!",
		})
		return
	}

	create := rs.miniatures.CreateMiniatureOf
	if req.Linked {
		create = rs.miniatures.CreateLinkedMiniatureOf
	}
	w, err := create(c.Request.Context(), source)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	info, _ := miniature.ParseName(w.Name())
	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("Miniature world %s created.", w.Name()),
		Data:    info,
	})
}

// handleRemoveMiniature удаляет миниатюру по имени
func (rs *RestServer) handleRemoveMiniature(c *gin.Context) {
	name := c.Param("name")
	w, ok := rs.miniatures.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "could not find that world!",
		})
		return
	}

	if err := rs.miniatures.RemoveMiniature(c.Request.Context(), w); err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("Miniature world %s removed.", name),
	})
}

// handleListMiniatures возвращает все загруженные миниатюры
func (rs *RestServer) handleListMiniatures(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data:    rs.miniatures.ListMiniatures(),
	})
}

// handleHealth обрабатывает запрос проверки здоровья сервиса
func (rs *RestServer) handleHealth(c *gin.Context) {
	snap := rs.metrics.Snapshot(len(rs.miniatures.ListMiniatures()), rs.miniatures.RegionsEnabled())
	c.JSON(http.StatusOK, snap)
}

func (rs *RestServer) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		rs.log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, GenericResponse{
		Success: false,
		Message: "Error: " + err.Error(),
	})
}

// statusFor сопоставляет ошибки менеджера с HTTP статусами
func statusFor(err error) int {
	switch {
	case errors.Is(err, world.ErrWorldExists),
		errors.Is(err, miniature.ErrLinkedMiniatureExists):
		return http.StatusConflict
	case errors.Is(err, miniature.ErrInvalidSource),
		errors.Is(err, miniature.ErrInvalidTarget),
		errors.Is(err, multiverse.ErrInvalidWorldName):
		return http.StatusBadRequest
	case errors.Is(err, miniature.ErrUnresolvedWorld),
		errors.Is(err, miniature.ErrUnloadedWorld):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
