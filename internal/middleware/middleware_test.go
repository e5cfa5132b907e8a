package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CityClaim/config"
	"CityClaim/pkg/logger"
	"CityClaim/pkg/response"
	"CityClaim/pkg/token"
)

const testSecret = "test-secret-please-ignore"

func TestMain(m *testing.M) {
	logger.InitNop()
	config.Cfg.JWTSecret = testSecret
	config.Cfg.JWTExpireMinutes = 30
	if err := token.Init(); err != nil {
		panic(err)
	}
	if err := Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func authEngine() *route.Engine {
	e := route.NewEngine(hzconfig.NewOptions(nil))
	e.GET("/me", AuthMiddleware(), func(ctx context.Context, c *app.RequestContext) {
		id, ok := GetUserID(ctx, c)
		if !ok {
			c.String(http.StatusTeapot, "no identity")
			return
		}
		c.JSON(http.StatusOK, map[string]int64{"uid": id})
	})
	return e
}

func TestAuthMiddleware_AcceptsSignedToken(t *testing.T) {
	signed, _, err := token.GenerateAccessToken(42, testSecret, time.Hour)
	require.NoError(t, err)

	w := ut.PerformRequest(authEngine(), http.MethodGet, "/me", nil,
		ut.Header{Key: "Authorization", Value: "Bearer " + signed})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode(), string(resp.Body()))
	var body map[string]int64
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, int64(42), body["uid"])
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	w := ut.PerformRequest(authEngine(), http.MethodGet, "/me", nil)
	resp := w.Result()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "UNAUTHORIZED")
}

func TestAuthMiddleware_RejectsWrongSecret(t *testing.T) {
	signed, _, err := token.GenerateAccessToken(42, "another-secret", time.Hour)
	require.NoError(t, err)

	w := ut.PerformRequest(authEngine(), http.MethodGet, "/me", nil,
		ut.Header{Key: "Authorization", Value: "Bearer " + signed})

	assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode())
}

func TestAuthMiddleware_RejectsExpiredToken(t *testing.T) {
	signed, _, err := token.GenerateAccessToken(42, testSecret, -time.Minute)
	require.NoError(t, err)

	w := ut.PerformRequest(authEngine(), http.MethodGet, "/me", nil,
		ut.Header{Key: "Authorization", Value: "Bearer " + signed})

	assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode())
}

func TestRecoverMiddleware_ReturnsInternalError(t *testing.T) {
	e := route.NewEngine(hzconfig.NewOptions(nil))
	e.Use(RecoverMiddlewareWithConfig(RecoverConfig{MaxStackFrames: 8}))
	e.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
		var m map[string]int
		m["x"] = 1
	})

	w := ut.PerformRequest(e, http.MethodGet, "/boom", nil)
	resp := w.Result()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Nil(t, body.Error.Details)
}

func TestRecoverMiddleware_ExposesDetailsOutsideProduction(t *testing.T) {
	e := route.NewEngine(hzconfig.NewOptions(nil))
	e.Use(RecoverMiddlewareWithConfig(RecoverConfig{ExposeDetails: true}))
	e.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
		panic("kaboom")
	})

	w := ut.PerformRequest(e, http.MethodGet, "/boom", nil)
	resp := w.Result()

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "kaboom", body.Error.Details["panic"])
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	e := route.NewEngine(hzconfig.NewOptions(nil))
	e.Use(CORSMiddleware())
	e.OPTIONS("/v1/checkins", func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, "should not reach")
	})

	w := ut.PerformRequest(e, http.MethodOptions, "/v1/checkins", nil)
	resp := w.Result()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, "*", string(resp.Header.Peek("Access-Control-Allow-Origin")))
}
