package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ltiernan/tracescope/internal/auth"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
)

type registerRequest struct {
	Handle   string `json:"handle" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Handle   string `json:"handle" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	UserID    string    `json:"user_id"`
	Handle    string    `json:"handle"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		UserID:    user.UserID.String(),
		Handle:    user.Handle,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "handle and password are required"})
		return
	}

	user, err := s.sessions.Register(c.Request.Context(), req.Handle, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrUserAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "handle already taken"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newUserResponse(user))
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "handle and password are required"})
		return
	}

	session, user, err := s.sessions.Login(
		c.Request.Context(),
		req.Handle,
		req.Password,
		c.Request.UserAgent(),
		c.ClientIP(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	s.sessions.SetCookie(c.Writer, session)
	c.JSON(http.StatusOK, newUserResponse(user))
}

func (s *Server) logout(c *gin.Context) {
	session := auth.CurrentSession(c)

	if err := s.sessions.Logout(c.Request.Context(), session.SessionID); err != nil {
		respondError(c, err)
		return
	}

	s.sessions.ClearCookie(c.Writer)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
