package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/challenges/scheduler/internal/executor"
	"github.com/challenges/scheduler/internal/orm"
	"github.com/challenges/scheduler/internal/store"
)

var Provider = wire.NewSet(NewServer)

// CronSecret is the shared secret checked by the trigger gate. A named type
// so wiring can tell it apart from other strings.
type CronSecret string

type Server struct {
	router *gin.Engine
}

func NewServer(
	storage *orm.Storage,
	st *store.Store,
	exec *executor.Executor,
	cronSecret CronSecret,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(ErrorHandlingMiddleware(logger))
	s.router.Use(Cors())

	scheduleHandler := NewScheduleHandler(st, logger)
	cronHandler := NewCronHandler(exec, logger)

	v1 := s.router.Group("/api/v1")

	// liveness only; everything else needs the shared secret
	v1.GET("/health", func(c *gin.Context) {
		if err := storage.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now()})
	})

	gated := v1.Group("", TriggerGate(string(cronSecret), logger))
	{
		schedules := gated.Group("/schedules")
		{
			schedules.POST("", scheduleHandler.Create)
			schedules.GET("", scheduleHandler.List)
			schedules.GET("/:id", scheduleHandler.Get)
			schedules.PUT("/:id", scheduleHandler.Update)
			schedules.DELETE("/:id", scheduleHandler.Cancel)
		}

		gated.POST("/cron/execute", cronHandler.Execute)
	}

	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
