package viewer

import (
	"context"
	"strings"

	"judgeresult/internal/result/model"
	appErr "judgeresult/pkg/errors"
	"judgeresult/pkg/utils/contextkey"
	"judgeresult/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const ginViewerKey = "viewer"

// Middleware resolves the viewer of every request. Requests without a token continue anonymously.
func Middleware(resolver *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolver == nil {
			response.AbortWithError(c, appErr.New(appErr.ServiceUnavailable).WithMessage("viewer resolver unavailable"))
			return
		}
		v, err := resolver.Resolve(c.Request.Context(), extractBearerToken(c.GetHeader("Authorization")))
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		ctx := context.WithValue(c.Request.Context(), contextkey.Viewer, v)
		if v.UserID != nil {
			ctx = context.WithValue(ctx, contextkey.UserID, *v.UserID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginViewerKey, v)
		c.Next()
	}
}

// RequirePrivileged rejects requests whose viewer is not privileged.
func RequirePrivileged() gin.HandlerFunc {
	return func(c *gin.Context) {
		v := FromGin(c)
		if v.UserID == nil {
			response.AbortWithError(c, appErr.New(appErr.Unauthorized))
			return
		}
		if !v.Privileged {
			response.AbortWithError(c, appErr.ForbiddenError("privileged role required"))
			return
		}
		c.Next()
	}
}

// FromGin returns the viewer stored by Middleware, or the anonymous viewer.
func FromGin(c *gin.Context) model.Viewer {
	if raw, ok := c.Get(ginViewerKey); ok {
		if v, ok := raw.(model.Viewer); ok {
			return v
		}
	}
	return model.Anonymous()
}

// FromContext returns the viewer stored by Middleware, or the anonymous viewer.
func FromContext(ctx context.Context) model.Viewer {
	if v, ok := ctx.Value(contextkey.Viewer).(model.Viewer); ok {
		return v
	}
	return model.Anonymous()
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
