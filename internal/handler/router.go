package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskdeck/backend/internal/model"
	"github.com/taskdeck/backend/internal/service"
	"go.uber.org/zap"
)

// NewRouter wires all routes. Auth routes are public except logout-all and
// profile; todos require authentication; the user roster is admin-only.
func NewRouter(
	authService *service.AuthService,
	usersService *service.UsersService,
	todosService *service.TodosService,
	corsOrigins string,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogger(logger))
	router.Use(CORSMiddleware(strings.Split(corsOrigins, ",")))

	router.GET("/", Root)
	router.GET("/ping", Ping)
	router.GET("/openapi.json", OpenAPIDoc)

	authHandler := NewAuthHandler(authService, logger)
	usersHandler := NewUsersHandler(usersService, logger)
	todosHandler := NewTodosHandler(todosService, logger)

	authenticated := AuthMiddleware(authService)

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/logout-all", authenticated, authHandler.LogoutAll)
	auth.GET("/profile", authenticated, authHandler.Profile)

	todos := api.Group("/todos", authenticated)
	todos.GET("", todosHandler.List)
	todos.GET("/:id", todosHandler.Get)
	todos.POST("", todosHandler.Create)
	todos.PUT("/:id", todosHandler.Update)
	todos.DELETE("/:id", todosHandler.Delete)

	users := api.Group("/users", authenticated, RequireRoles(model.RoleAdmin))
	users.GET("", usersHandler.List)
	users.GET("/:id", usersHandler.Get)
	users.POST("", usersHandler.Create)
	users.PUT("/:id", usersHandler.Update)
	users.DELETE("/:id", usersHandler.Delete)

	return router
}
