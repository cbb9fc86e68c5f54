package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/litdeck/litdeck/internal/pkg/errcode"
	"github.com/litdeck/litdeck/internal/pkg/response"
	"github.com/litdeck/litdeck/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	user, token, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id": user.ID,
		"email":   user.Email,
		"token":   token,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id": user.ID,
		"email":   user.Email,
		"token":   token,
	})
}
