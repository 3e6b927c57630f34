package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListTasks(c *gin.Context) {
	projectID, ok := requireProjectID(c)
	if !ok {
		return
	}
	tasks, err := h.service.ListTasks(c.Request.Context(), projectID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(tasks, toTaskResponse))
}

func (h *httpHandler) handleCreateTask(c *gin.Context) {
	projectID, ok := requireProjectID(c)
	if !ok {
		return
	}
	var request createTaskRequest
	if !h.bindJSON(c, &request) {
		return
	}
	var problems issues
	input := request.toInput(&problems)
	if h.rejectIssues(c, problems) {
		return
	}

	task, err := h.service.CreateTask(c.Request.Context(), projectID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTaskResponse(*task))
}

func (h *httpHandler) handleUpdateTask(c *gin.Context) {
	projectID, ok := requireProjectID(c)
	if !ok {
		return
	}
	var request updateTaskRequest
	if !h.bindJSON(c, &request) {
		return
	}
	var problems issues
	input := request.toInput(&problems)
	if h.rejectIssues(c, problems) {
		return
	}

	task, err := h.service.UpdateTask(c.Request.Context(), projectID, c.Param("id"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if task == nil {
		respondNotFound(c, "task")
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(*task))
}

func (h *httpHandler) handleDeleteTask(c *gin.Context) {
	projectID, ok := requireProjectID(c)
	if !ok {
		return
	}
	deleted, err := h.service.DeleteTask(c.Request.Context(), projectID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !deleted {
		respondNotFound(c, "task")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleReorderTasks(c *gin.Context) {
	projectID, ok := requireProjectID(c)
	if !ok {
		return
	}
	var request reorderRequest
	if !h.bindJSON(c, &request) {
		return
	}
	if h.rejectIssues(c, validateReorder(request)) {
		return
	}
	tasks, err := h.service.ReorderTasks(c.Request.Context(), projectID, request.IDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(tasks, toTaskResponse))
}

func (h *httpHandler) handleListTaskHistory(c *gin.Context) {
	projectID, ok := requireProjectID(c)
	if !ok {
		return
	}
	history, err := h.service.ListTaskHistory(c.Request.Context(), projectID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(history, toTaskHistoryResponse))
}
