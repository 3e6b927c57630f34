package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simplegantt/planner/internal/planner"
)

func (h *httpHandler) handleListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(users, toUserResponse))
}

func (h *httpHandler) handleListUserSummaries(c *gin.Context) {
	summaries, err := h.service.ListUserSummaries(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(summaries, func(summary planner.UserSummary) userSummaryResponse {
		return userSummaryResponse{userResponse: toUserResponse(summary.User), TaskCount: summary.TaskCount}
	}))
}

func (h *httpHandler) handleCreateUser(c *gin.Context) {
	var request nameRequest
	if !h.bindJSON(c, &request) {
		return
	}
	user, err := h.service.CreateUser(c.Request.Context(), planner.CreateUserInput{Name: request.Name})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(*user))
}

func (h *httpHandler) handleUpdateUser(c *gin.Context) {
	var request updateNameRequest
	if !h.bindJSON(c, &request) {
		return
	}
	var problems issues
	updatedAt, name := request.toPatch(&problems)
	if h.rejectIssues(c, problems) {
		return
	}

	user, err := h.service.UpdateUser(c.Request.Context(), c.Param("id"), planner.UpdateUserInput{
		UpdatedAt: updatedAt,
		Name:      name,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if user == nil {
		respondNotFound(c, "user")
		return
	}
	c.JSON(http.StatusOK, toUserResponse(*user))
}

func (h *httpHandler) handleDeleteUser(c *gin.Context) {
	deleted, err := h.service.DeleteUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !deleted {
		respondNotFound(c, "user")
		return
	}
	c.Status(http.StatusNoContent)
}
