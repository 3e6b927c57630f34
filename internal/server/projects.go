package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simplegantt/planner/internal/planner"
)

func (h *httpHandler) handleListProjects(c *gin.Context) {
	projects, err := h.service.ListProjects(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(projects, toProjectResponse))
}

func (h *httpHandler) handleListProjectSummaries(c *gin.Context) {
	summaries, err := h.service.ListProjectSummaries(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(summaries, func(summary planner.ProjectSummary) projectSummaryResponse {
		return projectSummaryResponse{projectResponse: toProjectResponse(summary.Project), TaskCount: summary.TaskCount}
	}))
}

func (h *httpHandler) handleCreateProject(c *gin.Context) {
	var request nameRequest
	if !h.bindJSON(c, &request) {
		return
	}
	project, err := h.service.CreateProject(c.Request.Context(), planner.CreateProjectInput{Name: request.Name})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProjectResponse(*project))
}

func (h *httpHandler) handleUpdateProject(c *gin.Context) {
	var request updateNameRequest
	if !h.bindJSON(c, &request) {
		return
	}
	var problems issues
	updatedAt, name := request.toPatch(&problems)
	if h.rejectIssues(c, problems) {
		return
	}

	project, err := h.service.UpdateProject(c.Request.Context(), c.Param("id"), planner.UpdateProjectInput{
		UpdatedAt: updatedAt,
		Name:      name,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if project == nil {
		respondNotFound(c, "project")
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(*project))
}

func (h *httpHandler) handleDeleteProject(c *gin.Context) {
	deleted, err := h.service.DeleteProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !deleted {
		respondNotFound(c, "project")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleReorderProjects(c *gin.Context) {
	var request reorderRequest
	if !h.bindJSON(c, &request) {
		return
	}
	if h.rejectIssues(c, validateReorder(request)) {
		return
	}
	projects, err := h.service.ReorderProjects(c.Request.Context(), request.IDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(projects, toProjectResponse))
}
