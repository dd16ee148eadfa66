// Package guard exposes the decision engine over HTTP: a policy
// decision point endpoint plus the policy administration surface.
package guard

import (
	"context"
	"errors"
	"net/http"

	"github.com/dhawalhost/mcpguard/internal/authz"
	"github.com/dhawalhost/mcpguard/internal/identity"
	"github.com/dhawalhost/mcpguard/internal/policy"
	"github.com/dhawalhost/mcpguard/pkg/observability"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HTTPHandler holds the HTTP API handlers for the guard service.
type HTTPHandler struct {
	engine   *authz.Engine
	ids      *identity.Manager
	loader   *policy.Loader
	store    policy.Store // nil when persistence is not configured
	metrics  *observability.Metrics
	logger   *zap.Logger
	validate *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler. store and metrics may be
// nil.
func NewHTTPHandler(
	engine *authz.Engine,
	ids *identity.Manager,
	store policy.Store,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		engine:   engine,
		ids:      ids,
		loader:   policy.NewLoader(logger),
		store:    store,
		metrics:  metrics,
		logger:   logger.Named("guard.api"),
		validate: validator.New(),
	}
}

// RegisterRoutes registers the guard routes. adminGuard is applied to
// the mutating policy surface only; the decision endpoint carries its
// own authentication via the identity manager.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine, adminGuard gin.HandlerFunc) {
	router.GET("/health", h.healthCheck)
	router.POST("/v1/decision", h.decide)

	admin := router.Group("/v1/policies")
	if adminGuard != nil {
		admin.Use(adminGuard)
	}
	admin.GET("", h.listPolicies)
	admin.GET("/:name", h.getPolicy)
	admin.POST("", h.addPolicy)
	admin.DELETE("/:name", h.removePolicy)
	admin.PUT("", h.reloadPolicies)
}

func (h *HTTPHandler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"healthy":  true,
		"policies": h.engine.PolicyCount(),
	})
}

// decide authenticates the caller from the request headers, evaluates
// the posted resource context, and returns the decision. Denials are
// part of the 200 response body; this endpoint is a decision point, not
// an enforcement point.
func (h *HTTPHandler) decide(c *gin.Context) {
	var rc authz.ResourceContext
	if err := c.ShouldBindJSON(&rc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(&rc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if rc.RequestID == "" {
		rc.RequestID = uuid.NewString()
	}

	auth := h.ids.Authenticate(c.Request.Header)
	decision := h.engine.Evaluate(auth, rc)

	if h.metrics != nil {
		h.metrics.ObserveDecision(decision.Allowed, string(decision.Reason), decision.EvaluationTime)
	}
	h.auditDecision(&auth, &rc, &decision)

	c.JSON(http.StatusOK, decision)
}

func (h *HTTPHandler) auditDecision(auth *authz.AuthContext, rc *authz.ResourceContext, d *authz.Decision) {
	outcome := "denied"
	if d.Allowed {
		outcome = "allowed"
	}
	h.logger.Info("authorization "+outcome,
		zap.String("user_id", auth.UserID),
		zap.String("agent_id", auth.AgentID),
		zap.String("resource_type", string(rc.Type)),
		zap.String("capability", rc.Resource.Name),
		zap.String("action", rc.Action),
		zap.String("reason", string(d.Reason)),
		zap.String("matched_rule", d.MatchedRule),
		zap.Int("evaluated_rules", d.EvaluatedRules),
		zap.Float64("evaluation_time_ms", d.EvaluationTime),
		zap.String("request_id", rc.RequestID),
	)
}

func (h *HTTPHandler) listPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"policies": h.engine.PolicyNames()})
}

func (h *HTTPHandler) getPolicy(c *gin.Context) {
	p, err := h.engine.Policy(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *HTTPHandler) addPolicy(c *gin.Context) {
	var p authz.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.loader.Validate(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.engine.AddPolicy(p); err != nil {
		if errors.Is(err, authz.ErrPolicyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.persist(c.Request.Context(), p)
	c.JSON(http.StatusCreated, gin.H{"name": p.Name})
}

func (h *HTTPHandler) removePolicy(c *gin.Context) {
	name := c.Param("name")
	if !h.engine.RemovePolicy(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "policy not found: " + name})
		return
	}
	if h.store != nil {
		if err := h.store.DeletePolicy(c.Request.Context(), name); err != nil && !errors.Is(err, policy.ErrNotFound) {
			h.logger.Error("failed to delete persisted policy",
				zap.String("policy", name), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"removed": name})
}

func (h *HTTPHandler) reloadPolicies(c *gin.Context) {
	var req struct {
		Policies []authz.Policy `json:"policies"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range req.Policies {
		if err := h.loader.Validate(&req.Policies[i]); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.engine.Reload(req.Policies); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.syncStore(c.Request.Context(), req.Policies)
	c.JSON(http.StatusOK, gin.H{"policies": h.engine.PolicyNames()})
}

// syncStore reconciles the persisted set with a freshly reloaded one.
// Policies the reload dropped are deleted first; otherwise the next
// startup merge would load them back, resurrecting a policy an operator
// deliberately removed.
func (h *HTTPHandler) syncStore(ctx context.Context, policies []authz.Policy) {
	if h.store == nil {
		return
	}
	keep := make(map[string]struct{}, len(policies))
	for _, p := range policies {
		keep[p.Name] = struct{}{}
	}
	stored, err := h.store.ListPolicies(ctx)
	if err != nil {
		h.logger.Error("failed to list persisted policies", zap.Error(err))
	} else {
		for _, sp := range stored {
			if _, ok := keep[sp.Name]; ok {
				continue
			}
			if err := h.store.DeletePolicy(ctx, sp.Name); err != nil && !errors.Is(err, policy.ErrNotFound) {
				h.logger.Error("failed to delete dropped persisted policy",
					zap.String("policy", sp.Name), zap.Error(err))
			}
		}
	}
	for _, p := range policies {
		h.persist(ctx, p)
	}
}

func (h *HTTPHandler) persist(ctx context.Context, p authz.Policy) {
	if h.store == nil {
		return
	}
	if err := h.store.SavePolicy(ctx, p); err != nil {
		// Persistence is best-effort; the in-memory engine already
		// holds the authoritative set for this process.
		h.logger.Error("failed to persist policy",
			zap.String("policy", p.Name), zap.Error(err))
	}
}
