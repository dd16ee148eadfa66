package middleware

import (
	"net/http"
	"strings"

	"github.com/dhawalhost/mcpguard/internal/authz"
	"github.com/dhawalhost/mcpguard/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// adminTool is the synthetic capability name the policy-admin surface is
// evaluated as, so operators can govern access to policy mutation with
// the same rules that govern everything else.
const adminTool = "policy_admin"

// Guard authenticates the request through the identity manager and
// authorizes it against the engine before letting the admin handlers
// run. Denials map to 401 (unauthenticated) or 403 (denied).
func Guard(ids *identity.Manager, engine *authz.Engine, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("middleware.guard")
	return func(c *gin.Context) {
		auth := ids.Authenticate(c.Request.Header)
		c.Set("auth_context", auth)

		decision := engine.Evaluate(auth, authz.ResourceContext{
			Type: authz.TypeTool,
			Resource: authz.Resource{
				Name:      adminTool,
				Namespace: "mcpguard",
				Tags:      []string{"admin"},
			},
			Action:    strings.ToLower(c.Request.Method),
			Method:    c.FullPath(),
			RequestID: uuid.NewString(),
		})

		if decision.Allowed {
			c.Next()
			return
		}

		log.Warn("admin request denied",
			zap.String("user_id", auth.UserID),
			zap.String("path", c.FullPath()),
			zap.String("reason", string(decision.Reason)),
		)
		status := http.StatusForbidden
		if decision.Reason == authz.ReasonAuthenticationFailed {
			status = http.StatusUnauthorized
		}
		c.AbortWithStatusJSON(status, gin.H{
			"error":  decision.Message,
			"reason": decision.Reason,
		})
	}
}

// AuthFromContext returns the AuthContext Guard stored for the request.
func AuthFromContext(c *gin.Context) (authz.AuthContext, bool) {
	v, ok := c.Get("auth_context")
	if !ok {
		return authz.AuthContext{}, false
	}
	auth, ok := v.(authz.AuthContext)
	return auth, ok
}
