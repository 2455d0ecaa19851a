package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tablereserve/internal/filter"
	appErr "github.com/xxxsen/tablereserve/internal/pkg/errors"
	"github.com/xxxsen/tablereserve/internal/pkg/response"
	"github.com/xxxsen/tablereserve/internal/repo"
	"github.com/xxxsen/tablereserve/internal/service"
)

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) Create(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.Create(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toUserResponse(user))
}

func (h *UserHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	user, token, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, loginResponse{AccessKey: token, Profile: toUserResponse(user)})
}

func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.FindByID(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toUserResponse(user))
}

func (h *UserHandler) Count(c *gin.Context) {
	where, err := filter.ParseWhere(c.Query("where"), repo.UserSchema)
	if err != nil {
		badRequest(c, err)
		return
	}
	count, err := h.users.Count(c.Request.Context(), where)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, countResponse{Count: count})
}

func (h *UserHandler) Find(c *gin.Context) {
	f, err := filter.ParseFilter(c.Query("filter"), repo.UserSchema)
	if err != nil {
		badRequest(c, err)
		return
	}
	users, err := h.users.Find(c.Request.Context(), f)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toUserResponses(users))
}

func (h *UserHandler) UpdateAll(c *gin.Context) {
	where, err := filter.ParseWhere(c.Query("where"), repo.UserSchema)
	if err != nil {
		badRequest(c, err)
		return
	}
	var req userWriteRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ID != nil {
		handleError(c, appErr.Invalid("id cannot be changed"))
		return
	}
	count, err := h.users.UpdateAll(c.Request.Context(), where, req.toPatch())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, countResponse{Count: count})
}

func (h *UserHandler) FindByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toUserResponse(user))
}

func (h *UserHandler) UpdateByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	req, ok := bindWrite(c, id)
	if !ok {
		return
	}
	if err := h.users.UpdateByID(c.Request.Context(), id, req.toPatch()); err != nil {
		handleError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *UserHandler) ReplaceByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	req, ok := bindWrite(c, id)
	if !ok {
		return
	}
	in := service.ReplaceInput{
		Email:         deref(req.Email),
		Password:      deref(req.Password),
		EmailVerified: deref(req.EmailVerified),
		Created:       unixMilli(req.Created),
		Modified:      unixMilli(req.Modified),
	}
	if err := h.users.Replace(c.Request.Context(), id, in); err != nil {
		handleError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *UserHandler) DeleteByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.users.DeleteByID(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.NoContent(c)
}

func bindWrite(c *gin.Context, id int64) (userWriteRequest, bool) {
	var req userWriteRequest
	if !bindJSON(c, &req) {
		return req, false
	}
	if req.ID != nil && *req.ID != id {
		handleError(c, appErr.Invalid("id in body does not match path"))
		return req, false
	}
	return req, true
}
