package telephony

import (
	"net/http"
	"strings"

	"holdline/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/client"
)

const signatureHeader = "X-Twilio-Signature"

// RequireSignature rejects webhooks that are not signed with the account auth token.
// publicURL must be the base URL Twilio was given, since the signature covers the full URL.
// WebSocket upgrades are signed over the URL alone.
func RequireSignature(authToken, publicURL string) gin.HandlerFunc {
	validator := client.NewRequestValidator(authToken)
	base := strings.TrimRight(publicURL, "/")

	return func(c *gin.Context) {
		sig := c.GetHeader(signatureHeader)
		if sig == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing signature"})
			return
		}

		params := map[string]string{}
		if c.Request.Method == http.MethodPost {
			if err := c.Request.ParseForm(); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
				return
			}
			for k, v := range c.Request.PostForm {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}
		}

		if !validator.Validate(base+c.Request.URL.RequestURI(), params, sig) {
			logger.FromGin(c).Warn("twilio signature rejected", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}
