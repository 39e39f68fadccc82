package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"student-records/internal/audit"
	"student-records/internal/auth"
	"student-records/internal/config"
	"student-records/internal/filestore"
	"student-records/internal/handler"
	"student-records/internal/metrics"
	"student-records/internal/middleware"
	"student-records/internal/service"
	"student-records/internal/store"
)

// Deps are the long-lived collaborators the routes are built from.
type Deps struct {
	DB       *gorm.DB
	Redis    *store.Redis
	Renewals store.RenewalStore
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

// SetupRouter configures the gin engine and every route.
func SetupRouter(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(
		middleware.Recovery(d.Log),
		middleware.RequestLogger(d.Log, d.Metrics, "/healthz", "/metrics"),
		cors.New(corsConfig(cfg.CORS)),
	)

	students := store.NewStudentStore(d.DB)
	recorder := audit.NewRecorder(d.DB)
	studentSvc := service.NewStudentService(students, recorder, d.Metrics, d.Log)
	authSvc := auth.NewService(store.NewUserStore(d.DB), d.Renewals, auth.Options{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL(),
		RenewalTTL: cfg.JWT.RenewalTTL(),
		BcryptCost: cfg.Auth.BcryptCost,
	})
	files := filestore.New(cfg.Upload.Dir, cfg.Upload.URLPath, cfg.Upload.MaxBytes)
	studentSvc.Photos = files

	r.GET("/healthz", handler.Health(d.DB, d.Redis))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	r.Static(files.URLPath, files.Dir)

	// ====== API ======
	api := r.Group("/api")

	// 登录/注册/续期接口（不需要鉴权）
	authHandler := handler.NewAuthHandler(authSvc, cfg.Auth.AllowRegister)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", authHandler.Logout)

	// 需要登录才能访问的接口
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authSvc))

	protected.GET("/auth/me", authHandler.Me)
	protected.POST("/profile/password", authHandler.ChangePassword)

	paging := handler.Paging{Default: cfg.App.PageSize, Max: cfg.App.MaxPageSize}
	studentHandler := handler.NewStudentHandler(studentSvc, files, paging)
	importExportHandler := handler.NewImportExportHandler(studentSvc)
	protected.GET("/students", studentHandler.ListStudents)
	protected.POST("/students", studentHandler.CreateStudent)
	protected.GET("/students/export/xlsx/all", importExportHandler.ExportXLSX)
	protected.GET("/students/export/csv/all", importExportHandler.ExportCSV)
	protected.POST("/students/import/xlsx", importExportHandler.ImportXLSX)
	protected.GET("/students/:id", studentHandler.GetStudent)
	protected.PUT("/students/:id", studentHandler.UpdateStudent)
	protected.PATCH("/students/:id", studentHandler.UpdateStudent)
	protected.DELETE("/students/:id", studentHandler.DeleteStudent)

	// 数据统计
	protected.GET("/analytics", studentHandler.Analytics)

	// 操作日志（仅管理员）
	logHandler := handler.NewLogHandler(service.NewAuditService(recorder), paging)
	protected.GET("/logs", logHandler.ListLogs)

	return r
}

func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	wildcard := len(c.AllowedOrigins) == 0
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
	}
	if wildcard {
		// any origin, but never with cookies
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = c.AllowedOrigins
	cc.AllowCredentials = true
	return cc
}
