package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-club-dues/app/controller"
	duesgrpc "github.com/vibast-solutions/ms-go-club-dues/app/grpc"
	"github.com/vibast-solutions/ms-go-club-dues/app/telemetry"
	"github.com/vibast-solutions/ms-go-club-dues/app/types"
	"github.com/vibast-solutions/ms-go-club-dues/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers and the job scheduler",
	Long:  "Start the HTTP (Echo) and gRPC servers for the club dues service together with the in-process job scheduler.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, duesService, cleanup := mustCreateDuesService()
	defer cleanup()

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg.App.ServiceName, cfg.Telemetry)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize tracing")
	}

	sched := newDuesScheduler(cfg, duesService)

	duesController := controller.NewDuesController(duesService)
	webhookController := controller.NewWebhookController(duesService)
	jobsController := controller.NewJobsController(sched)
	grpcAdminServer := duesgrpc.NewServer(sched)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(duesController, webhookController, jobsController, echoInternalAuthMiddleware, cfg.App.ServiceName)
	grpcSrv, lis := setupGRPCServer(cfg, grpcAdminServer, grpcInternalAuthMiddleware, cfg.App.ServiceName)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()
	if err := sched.Stop(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Scheduler did not stop in time, running jobs were cancelled")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Tracing shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	duesController *controller.DuesController,
	webhookController *controller.WebhookController,
	jobsController *controller.JobsController,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", duesController.Health)

	// The gateway calls in without our request id or internal credentials.
	webhooks := e.Group("/webhooks/gateway")
	webhooks.POST("", webhookController.HandleGatewayNotification)
	webhooks.POST("/:provider", webhookController.HandleGatewayNotification)

	admin := e.Group("", requireRequestID(), internalAuthMiddleware.RequireInternalAccess(appServiceName))

	members := admin.Group("/members")
	members.POST("", duesController.CreateMember)
	members.GET("", duesController.ListMembers)
	members.GET("/:id", duesController.GetMember)
	members.PATCH("/:id/status", duesController.UpdateMemberStatus)
	members.DELETE("/:id", duesController.DeleteMember)

	dues := admin.Group("/dues")
	dues.GET("", duesController.ListDues)
	dues.GET("/:id", duesController.GetDues)
	dues.GET("/:id/status", duesController.GetDuesStatus)
	dues.GET("/:id/events", duesController.GetDuesEvents)
	dues.POST("/:id/payments", duesController.RecordPayment)
	dues.POST("/:id/cancel", duesController.CancelDues)
	dues.POST("/:id/payment-link", duesController.CreatePaymentLink)

	admin.GET("/gateway-notifications", duesController.ListGatewayNotifications)

	jobs := admin.Group("/jobs")
	jobs.GET("", jobsController.ListTasks)
	jobs.POST("/:name/run", jobsController.RunTask)
	jobs.POST("/:name/start", jobsController.StartTask)
	jobs.POST("/:name/stop", jobsController.StopTask)

	return e
}

func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func setupGRPCServer(
	cfg *config.Config,
	adminServer *duesgrpc.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			duesgrpc.RecoveryInterceptor(),
			duesgrpc.RequestIDInterceptor(),
			duesgrpc.LoggingInterceptor(),
			internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName),
		),
	)
	duesgrpc.RegisterAdminServiceServer(grpcSrv, adminServer)

	return grpcSrv, lis
}
