package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/schedule-gin/internal/api"
	"github.com/mautops/schedule-gin/internal/config"
	"github.com/mautops/schedule-gin/internal/container"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Schedule Gin API server.
The server will listen on the configured host and port, serve the scheduling
REST API and push schedule changes over WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		// 2. 初始化日志
		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		// 3. 初始化容器
		migrate, _ := cmd.Flags().GetBool("migrate")
		ctr, err := container.NewContainer(cfg, logger, migrate)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()
		ctr.Start()

		// 4. 配置热更新
		if configPath != "" {
			watcher := config.NewConfigWatcher(cfg, configPath)
			watcher.OnConfigChange(func(newCfg *config.Config) {
				api.ApplyLogLevel(logger, newCfg.Log.Level)
				ctr.ApplyConfig(newCfg)
				logger.WithFields(logrus.Fields{
					"log_level":        newCfg.Log.Level,
					"timeout_base":     newCfg.Scheduler.TimeoutBase.String(),
					"timeout_per_task": newCfg.Scheduler.TimeoutPerTask.String(),
				}).Info("config reloaded")
			})
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("config watcher disabled")
			} else {
				defer watcher.Stop()
			}
		}

		// 5. 设置路由
		router := api.SetupRoutes(api.RouterDeps{
			Config:     cfg,
			DB:         ctr.DB(),
			Scheduling: ctr.Scheduling(),
			Hub:        ctr.Hub(),
			Validator:  ctr.Validator(),
			Logger:     logger,
		})
		// 未匹配的路由返回 JSON 而不是 HTML
		router.NoRoute(func(c *gin.Context) {
			api.Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
		})
		if ctr.Validator() == nil {
			logger.Warn("auth.jwt_secret is empty, only header tenant resolution is available")
		}

		// 6. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.WithField("addr", addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			return fmt.Errorf("failed to start server: %w", err)
		}

		logger.Info("shutting down server")

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		logger.Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
	serverCmd.Flags().Bool("migrate", true, "Run database migrations on startup")
}
