package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/mk070/zenlance-sub002/internal/config"
	"github.com/mk070/zenlance-sub002/internal/invoice"
	invoicedomain "github.com/mk070/zenlance-sub002/internal/invoice/domain"
	"github.com/mk070/zenlance-sub002/internal/observability"
	obslogger "github.com/mk070/zenlance-sub002/internal/observability/logger"
	obsmetrics "github.com/mk070/zenlance-sub002/internal/observability/metrics"
	"github.com/mk070/zenlance-sub002/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	invoice.Module,
	pdf.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(Run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Run starts the HTTP server under the fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	invoiceSvc invoicedomain.Service
	pdfSvc     pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	InvoiceSvc invoicedomain.Service
	PDFSvc     pdf.Provider
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		invoiceSvc: p.InvoiceSvc,
		pdfSvc:     p.PDFSvc,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/invoices")

	api.POST("", s.CreateInvoice)
	api.GET("", s.ListInvoices)
	api.GET("/:id", s.GetInvoiceByID)
	api.PUT("/:id", s.UpdateInvoice)
	api.DELETE("/:id", s.DeleteInvoice)

	api.POST("/:id/send", s.SendInvoice)
	api.POST("/:id/mark-viewed", s.MarkInvoiceViewed)
	api.POST("/:id/mark-paid", s.MarkInvoicePaid)
	api.POST("/:id/cancel", s.CancelInvoice)

	api.GET("/:id/document", s.GetInvoiceDocument)
}
