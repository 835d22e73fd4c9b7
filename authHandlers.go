package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"github.com/gin-gonic/gin"
)

type loginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// setSessionCookie writes the httpOnly session cookie; maxAge -1 clears it.
func setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(config.SessionCookieName, token, maxAge, "/", "", config.IsProduction(), true)
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input loginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		info, err := models.Login(c.Request.Context(), input.Email, input.Password)
		if err != nil {
			respondError(c, "loginHandler", err)
			return
		}
		setSessionCookie(c, info.Token, int(config.GetSessionLifespan().Seconds()))
		c.JSON(http.StatusOK, gin.H{"user": info.User, "expires_at": info.ExpiresAt})
	}
}

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		user, err := models.RegisterUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "registerHandler", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "user registered", "user": user})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := models.Logout(c.Request.Context()); err != nil {
			respondError(c, "logoutHandler", err)
			return
		}
		setSessionCookie(c, "", -1)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

// logoutAllHandler revokes every session of the caller, on every device.
func logoutAllHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := models.GetCurrentUser(c.Request.Context())
		if err != nil {
			respondError(c, "logoutAllHandler", err)
			return
		}
		if err := user.DestroyAllSessions(c.Request.Context()); err != nil {
			respondError(c, "logoutAllHandler", err)
			return
		}
		setSessionCookie(c, "", -1)
		c.JSON(http.StatusOK, gin.H{"message": "logged out from all sessions"})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := models.GetCurrentUser(c.Request.Context())
		if err != nil {
			respondError(c, "meHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

func refreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := models.RefreshSession(c.Request.Context())
		if err != nil {
			respondError(c, "refreshHandler", err)
			return
		}
		setSessionCookie(c, info.Token, int(config.GetSessionLifespan().Seconds()))
		c.JSON(http.StatusOK, gin.H{"user": info.User, "expires_at": info.ExpiresAt})
	}
}
