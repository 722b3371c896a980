package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// tokenRequest carries a backend credential obtained by the login flow.
type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// TokenRequest is an exported model for Swagger docs of the token payload.
type TokenRequest struct {
	// Backend bearer token (JWT)
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiJ9..."`
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a 400 JSON on failure.
// Returns false if the request was already handled (aborted), true otherwise.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return false
	}
	return true
}

// @Summary      Cache backend credential
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body   TokenRequest  true  "Credential"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/token [post]
func (h *Handler) setToken(c *gin.Context) {
	var input tokenRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	if err := h.services.Credentials.SetToken(input.Token); err != nil {
		if h.log != nil {
			h.log.Infow("auth_token_rejected", "err", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusLoggedIn})
}

// @Summary      Log out
// @Description  Disconnects the valve (closing the backend session) and forgets the credential
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /auth/token [delete]
func (h *Handler) logout(c *gin.Context) {
	h.services.Credentials.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": statusLoggedOut})
}
