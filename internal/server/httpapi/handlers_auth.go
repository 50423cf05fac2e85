package httpapi

import (
	"fmt"
	"net/http"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/avelichko/linkvault/internal/server/models"
	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func accountPayload(account *models.Account) gin.H {
	return gin.H{
		"id":    account.ID,
		"name":  account.Name,
		"email": account.Email,
	}
}

func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(c, fmt.Errorf("%w: passwords do not match", common.ErrorValidation))
		return
	}

	account, session, err := s.sessions.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.logger.Debug(c.Request.Context(), "signup rejected", "reason", err.Error())
		writeError(c, err)
		return
	}

	s.setSessionCookie(c, session)
	writeSuccess(c, http.StatusCreated, gin.H{"user": accountPayload(account)})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(c, fmt.Errorf("%w: email and password are required", common.ErrorValidation))
		return
	}

	account, session, err := s.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	s.setSessionCookie(c, session)
	writeSuccess(c, http.StatusOK, gin.H{"user": accountPayload(account)})
}

// handleLogout always clears the cookie; revoking a session that does not
// exist is still a successful logout.
func (s *Server) handleLogout(c *gin.Context) {
	token, _ := c.Cookie(sessionCookie)

	if err := s.sessions.Logout(c.Request.Context(), token); err != nil {
		writeError(c, err)
		return
	}

	s.clearSessionCookie(c)
	writeSuccess(c, http.StatusOK, gin.H{"message": "logged out"})
}

// handleMe is the non-throwing identity probe: it answers 200 whether or not
// a valid session is present.
func (s *Server) handleMe(c *gin.Context) {
	token, _ := c.Cookie(sessionCookie)

	account, ok := s.sessions.CurrentIdentity(c.Request.Context(), token)
	if !ok {
		writeSuccess(c, http.StatusOK, gin.H{"authenticated": false, "user": nil})
		return
	}

	writeSuccess(c, http.StatusOK, gin.H{"authenticated": true, "user": accountPayload(account)})
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		writeError(c, fmt.Errorf("%w: passwords do not match", common.ErrorValidation))
		return
	}

	account := currentAccount(c)
	session, err := s.sessions.ChangePassword(c.Request.Context(), account, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(c, err)
		return
	}

	// The re-issued session replaces the one that authenticated this request.
	s.setSessionCookie(c, session)
	writeSuccess(c, http.StatusOK, gin.H{"user": accountPayload(account)})
}
