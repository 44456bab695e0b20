package main

import (
	"os"

	_ "backend/api/swagger" // swagger docs
	"backend/internal/database"
	"backend/internal/external"
	"backend/internal/handler"
	"backend/internal/middleware"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Expense Approval API
// @version         1.0
// @description     Expense management backend with a multi-level approval workflow engine.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := godotenv.Load("configs/.env"); err != nil {
		logger.Info("no configs/.env file found, relying on environment")
	}

	db, err := database.NewConnection(buildDSN())
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	notifier := websocket.HubNotifier{Hub: wsHub}

	// External services
	currencyAPI := external.NewCurrencyAPI(
		os.Getenv("EXCHANGE_RATE_API_URL"),
		os.Getenv("COUNTRIES_API_URL"),
	)
	ocrClient := external.NewHTTPOCRClient(os.Getenv("OCR_API_URL"))

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authService := service.NewAuthService(userRepo, companyRepo, categoryRepo, auditRepo, txManager, currencyAPI, logger)
	userService := service.NewUserService(userRepo, auditRepo, txManager, logger)
	companyService := service.NewCompanyService(companyRepo, logger)
	categoryService := service.NewCategoryService(categoryRepo, auditRepo, txManager, logger)
	ruleService := service.NewRuleService(ruleRepo, userRepo, auditRepo, txManager, logger)
	expenseService := service.NewExpenseService(expenseRepo, approvalRepo, categoryRepo, userRepo, ruleRepo, auditRepo, txManager, currencyAPI, notifier, logger)
	approvalService := service.NewApprovalService(expenseRepo, approvalRepo, userRepo, auditRepo, txManager, notifier, logger)
	ocrService := service.NewOCRService(ocrClient, os.Getenv("UPLOAD_DIR"), logger)
	auditService := service.NewAuditService(auditRepo, logger)

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(authService, currencyAPI)
	userHandler := handler.NewUserHandler(userService)
	companyHandler := handler.NewCompanyHandler(companyService)
	categoryHandler := handler.NewCategoryHandler(categoryService)
	ruleHandler := handler.NewRuleHandler(ruleService)
	expenseHandler := handler.NewExpenseHandler(expenseService)
	approvalHandler := handler.NewApprovalHandler(approvalService)
	ocrHandler := handler.NewOCRHandler(ocrService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	api := router.Group("/api")
	authHandler.RegisterRoutes(api)
	userHandler.RegisterRoutes(api)
	companyHandler.RegisterRoutes(api)
	categoryHandler.RegisterRoutes(api)
	ruleHandler.RegisterRoutes(api)
	expenseHandler.RegisterRoutes(api)
	approvalHandler.RegisterRoutes(api)
	ocrHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("server listening", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("GIN_MODE") == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func buildDSN() string {
	get := func(key, fallback string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return fallback
	}

	dbHost := get("DB_HOST", "localhost")
	dbPort := get("DB_PORT", "5432")
	dbUser := get("DB_USER", "postgres")
	dbPassword := get("DB_PASSWORD", "postgres")
	dbName := get("DB_NAME", "postgres")
	dbSslMode := get("DB_SSLMODE", "disable")

	return "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode
}
