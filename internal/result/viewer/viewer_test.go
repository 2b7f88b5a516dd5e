package viewer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"judgeresult/internal/result/model"
	"judgeresult/internal/result/viewer"
	appErr "judgeresult/pkg/errors"
	"judgeresult/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret = "result-secret"
	testIssuer = "judge-gateway"
)

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return token
}

func accessClaims(sub, role string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"typ":  "access",
		"iss":  testIssuer,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
}

func newResolver() *viewer.Resolver {
	return viewer.NewResolver(viewer.Config{JWTSecret: testSecret, JWTIssuer: testIssuer})
}

func TestResolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newResolver()

	anon, err := r.Resolve(ctx, "")
	if err != nil || anon.UserID != nil || anon.Privileged {
		t.Fatalf("expected anonymous viewer, got %+v %v", anon, err)
	}

	user, err := r.Resolve(ctx, signToken(t, accessClaims("42", "user"), testSecret))
	if err != nil {
		t.Fatalf("resolve user failed: %v", err)
	}
	if !user.Owns(42) || user.Privileged {
		t.Fatalf("unexpected user viewer %+v", user)
	}

	admin, err := r.Resolve(ctx, signToken(t, accessClaims("1", "Admin"), testSecret))
	if err != nil {
		t.Fatalf("resolve admin failed: %v", err)
	}
	if !admin.Privileged {
		t.Fatalf("expected admin to be privileged")
	}
}

func TestResolveRejectsBadTokens(t *testing.T) {
	t.Parallel()
	expired := accessClaims("42", "user")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	refresh := accessClaims("42", "user")
	refresh["typ"] = "refresh"
	otherIssuer := accessClaims("42", "user")
	otherIssuer["iss"] = "someone-else"
	badSubject := accessClaims("abc", "user")
	zeroSubject := accessClaims("0", "user")

	cases := []struct {
		name  string
		token string
		code  appErr.ErrorCode
	}{
		{"expired", signToken(t, expired, testSecret), appErr.TokenExpired},
		{"refresh token", signToken(t, refresh, testSecret), appErr.TokenInvalid},
		{"wrong issuer", signToken(t, otherIssuer, testSecret), appErr.TokenInvalid},
		{"wrong secret", signToken(t, accessClaims("42", "user"), "other-secret"), appErr.TokenInvalid},
		{"non numeric subject", signToken(t, badSubject, testSecret), appErr.TokenInvalid},
		{"zero subject", signToken(t, zeroSubject, testSecret), appErr.TokenInvalid},
		{"garbage", "not.a.token", appErr.TokenInvalid},
	}
	r := newResolver()
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := r.Resolve(context.Background(), tc.token)
			if !appErr.Is(err, tc.code) {
				t.Fatalf("expected %d, got %v", tc.code, err)
			}
		})
	}
}

func TestResolveWithoutSecretRejectsTokens(t *testing.T) {
	t.Parallel()
	r := viewer.NewResolver(viewer.Config{})
	if _, err := r.Resolve(context.Background(), signToken(t, accessClaims("1", "admin"), testSecret)); !appErr.Is(err, appErr.TokenInvalid) {
		t.Fatalf("expected TokenInvalid, got %v", err)
	}
}

type viewerResponse struct {
	UserID     *int64 `json:"user_id"`
	Privileged bool   `json:"privileged"`
	CtxUserID  int64  `json:"ctx_user_id"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(resolver *viewer.Resolver) *gin.Engine {
	router := gin.New()
	router.Use(viewer.Middleware(resolver))
	router.GET("/whoami", func(c *gin.Context) {
		v := viewer.FromContext(c.Request.Context())
		ctxUser, _ := c.Request.Context().Value(contextkey.UserID).(int64)
		c.JSON(http.StatusOK, viewerResponse{UserID: v.UserID, Privileged: v.Privileged, CtxUserID: ctxUser})
	})
	router.GET("/admin", viewer.RequirePrivileged(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	router := newRouter(newResolver())
	userToken := signToken(t, accessClaims("42", "user"), testSecret)
	adminToken := signToken(t, accessClaims("1", "admin"), testSecret)

	cases := []struct {
		name       string
		path       string
		auth       string
		wantStatus int
		wantUserID int64
	}{
		{name: "anonymous", path: "/whoami", wantStatus: http.StatusOK},
		{name: "user", path: "/whoami", auth: "Bearer " + userToken, wantStatus: http.StatusOK, wantUserID: 42},
		{name: "lowercase scheme", path: "/whoami", auth: "bearer " + userToken, wantStatus: http.StatusOK, wantUserID: 42},
		{name: "invalid token", path: "/whoami", auth: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "admin route anonymous", path: "/admin", wantStatus: http.StatusUnauthorized},
		{name: "admin route user", path: "/admin", auth: "Bearer " + userToken, wantStatus: http.StatusForbidden},
		{name: "admin route admin", path: "/admin", auth: "Bearer " + adminToken, wantStatus: http.StatusNoContent},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			router.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if tc.path != "/whoami" || rec.Code != http.StatusOK {
				return
			}
			var resp viewerResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response failed: %v", err)
			}
			if tc.wantUserID == 0 {
				if resp.UserID != nil {
					t.Fatalf("expected anonymous viewer")
				}
				return
			}
			if resp.UserID == nil || *resp.UserID != tc.wantUserID || resp.CtxUserID != tc.wantUserID {
				t.Fatalf("unexpected viewer %+v", resp)
			}
		})
	}
}

func TestMiddlewareWithoutResolver(t *testing.T) {
	t.Parallel()
	router := newRouter(nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestFromContextDefaultsToAnonymous(t *testing.T) {
	t.Parallel()
	if v := viewer.FromContext(context.Background()); v != (model.Viewer{}) {
		t.Fatalf("expected anonymous viewer, got %+v", v)
	}
}
