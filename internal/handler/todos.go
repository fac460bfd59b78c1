package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/taskdeck/backend/internal/model"
	"github.com/taskdeck/backend/internal/service"
	"go.uber.org/zap"
)

type TodosHandler struct {
	svc    *service.TodosService
	logger *zap.Logger
}

func NewTodosHandler(svc *service.TodosService, logger *zap.Logger) *TodosHandler {
	return &TodosHandler{svc: svc, logger: logger}
}

// List godoc
// @Summary List todos
// @Description Users see their own todos; admins see everyone's.
// @Tags todos
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param search query string false "Match against title or description"
// @Param completed query bool false "Filter by completion state"
// @Success 200 {object} model.TodoListResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/todos [get]
func (h *TodosHandler) List(c *gin.Context) {
	identity := GetAuthUser(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	filter := model.TodoFilter{
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	}
	if raw, ok := c.GetQuery("completed"); ok {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid completed filter"})
			return
		}
		filter.Completed = &completed
	}

	resp, err := h.svc.List(c.Request.Context(), identity, filter)
	if err != nil {
		h.writeTodoError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Get a todo
// @Tags todos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Todo ID"
// @Success 200 {object} model.Todo
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/todos/{id} [get]
func (h *TodosHandler) Get(c *gin.Context) {
	identity, todoID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	todo, err := h.svc.Get(c.Request.Context(), identity, todoID)
	if err != nil {
		h.writeTodoError(c, err)
		return
	}

	c.JSON(http.StatusOK, todo)
}

// Create godoc
// @Summary Create a todo
// @Tags todos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreateTodoRequest true "New todo"
// @Success 201 {object} model.Todo
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/todos [post]
func (h *TodosHandler) Create(c *gin.Context) {
	identity := GetAuthUser(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req model.CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	todo, err := h.svc.Create(c.Request.Context(), identity, req)
	if err != nil {
		h.writeTodoError(c, err)
		return
	}

	c.JSON(http.StatusCreated, todo)
}

// Update godoc
// @Summary Update a todo
// @Tags todos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Todo ID"
// @Param request body model.UpdateTodoRequest true "Fields to change"
// @Success 200 {object} model.Todo
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/todos/{id} [put]
func (h *TodosHandler) Update(c *gin.Context) {
	identity, todoID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	var req model.UpdateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	todo, err := h.svc.Update(c.Request.Context(), identity, todoID, req)
	if err != nil {
		h.writeTodoError(c, err)
		return
	}

	c.JSON(http.StatusOK, todo)
}

// Delete godoc
// @Summary Delete a todo
// @Tags todos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Todo ID"
// @Success 200 {object} model.StatusResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/todos/{id} [delete]
func (h *TodosHandler) Delete(c *gin.Context) {
	identity, todoID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), identity, todoID); err != nil {
		h.writeTodoError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.StatusResponse{Status: "deleted"})
}

func (h *TodosHandler) identityAndID(c *gin.Context) (*model.AuthUser, int64, bool) {
	identity := GetAuthUser(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
		return nil, 0, false
	}

	todoID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid todo id"})
		return nil, 0, false
	}

	return identity, todoID, true
}

func (h *TodosHandler) writeTodoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTodoNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "todo not found"})
	default:
		h.logger.Error("todo request failed", zap.Error(err), zap.String("request_id", c.GetString(requestIDKey)))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "server error"})
	}
}
