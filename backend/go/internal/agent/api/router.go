package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// AuthMiddleware 创建一个 Gin 中间件，用于验证 JWT。
// token 的 sub 必须等于代理的 sourceID。
func AuthMiddleware(jwtSecret, sourceID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "请求未包含授权标头"})
			return
		}

		// 我们期望的格式是 "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "授权标头格式不正确"})
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			// 确保 token 的签名方法是我们期望的
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("非预期的签名方法")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "无效的 token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "无效的 token claims"})
			return
		}
		if sub, _ := claims["sub"].(string); sub != sourceID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "token 与代理身份不符"})
			return
		}
		c.Next()
	}
}

// RegisterRoutes registers all the routes for the agent API. An empty
// jwtSecret disables authentication.
func RegisterRoutes(router *gin.Engine, api *API, jwtSecret string) {
	v1 := router.Group("/api/v1")
	v1.GET("/healthz", api.HealthHandler)

	tasks := v1.Group("/tasks")
	if jwtSecret != "" {
		tasks.Use(AuthMiddleware(jwtSecret, api.agent.SourceID()))
	}
	tasks.POST("", api.SubmitTaskHandler)
}

// NewRouter builds a gin engine with recovery and the agent routes.
func NewRouter(api *API, jwtSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	RegisterRoutes(router, api, jwtSecret)
	return router
}
