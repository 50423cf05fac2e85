package httpapi

import (
	"github.com/avelichko/linkvault/internal/server/models"
	"github.com/gin-gonic/gin"
)

// accountKey is the gin-context key under which requireSession stores the
// authenticated account.
const accountKey = "account"

// requireSession authenticates the session cookie and aborts with 401 when it
// is missing, malformed, expired, or revoked. Handlers behind it can rely on
// currentAccount returning a non-nil account.
func (s *Server) requireSession(c *gin.Context) {
	token, _ := c.Cookie(sessionCookie)

	account, err := s.sessions.Authenticate(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set(accountKey, account)
	c.Next()
}

func currentAccount(c *gin.Context) *models.Account {
	return c.MustGet(accountKey).(*models.Account)
}
