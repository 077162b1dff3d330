package server

import (
	"net/http"

	"field-service/internal/config"
	"field-service/internal/database"
	"field-service/internal/handlers"
	"field-service/internal/metrics"
	"field-service/internal/middleware"
	"field-service/internal/models"
	"field-service/internal/reports"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Reports  *reports.Manager
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Log),
		gin.Recovery(),
		d.Metrics.GinMiddleware(),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
	)

	users := database.NewUsers(d.DB)

	authH := handlers.NewAuthHandler(users, d.Config.JWTSecret, d.Config.JWTTTL, d.Log)
	userH := handlers.NewUserHandler(d.Reports, d.Log)
	reportH := handlers.NewReportHandler(d.Reports, d.Log)

	adminOnly := middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)
	engineerOnly := middleware.RequireRole(models.RoleEngineer)

	// AUTH
	r.POST("/auth/login", authH.Login)

	auth := r.Group("/")
	auth.Use(middleware.RequireAuth(d.Config.JWTSecret), middleware.InjectUser(users))

	// ПОЛЬЗОВАТЕЛИ
	auth.PUT("/users/signature", engineerOnly, userH.UpdateSignature)

	// ОТЧЁТЫ
	auth.POST("/reports", engineerOnly, reportH.Create)
	auth.GET("/reports", reportH.List)
	auth.GET("/reports/export", adminOnly, reportH.Export)
	auth.GET("/reports/engineer/:engineerId", reportH.ListByEngineer)
	auth.GET("/reports/generate-preview/:reportId", reportH.Preview)
	auth.GET("/reports/:id", reportH.Get)
	auth.PUT("/reports/:id", reportH.Update)
	auth.GET("/reports/:id/history", adminOnly, reportH.History)

	// подписание
	auth.POST("/reports/engineering-sign", reportH.EngineeringSign)
	auth.POST("/reports/send-email-customer-sign", reportH.SendEmailCustomerSign)
	auth.POST("/reports/customer-sign", reportH.CustomerSign)
	auth.POST("/reports/sign-direct", engineerOnly, reportH.SignDirect)

	// HEALTHCHECK
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			middleware.RequestLogger(c, d.Log).Warn("health check failed", zap.Error(err))
			c.String(http.StatusServiceUnavailable, "database unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
