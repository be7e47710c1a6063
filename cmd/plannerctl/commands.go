package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-planner/backend/config"
	"course-planner/backend/internal/api/handler"
	"course-planner/backend/internal/dto"
	"course-planner/backend/internal/repository"
	"course-planner/backend/internal/service"
	"course-planner/backend/pkg/database"
	"course-planner/backend/pkg/jwt"
	applogger "course-planner/backend/pkg/logger"
	"course-planner/backend/pkg/nusmods"
	"course-planner/backend/pkg/redis"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "plannerctl",
		Short: "选课规划服务运维工具",
		Long:  `执行数据库迁移、同步课程目录、签发调试用 Token。`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "执行全部未应用的迁移",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	}
	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "回滚最近一次迁移",
		Args:  cobra.NoArgs,
		RunE:  runMigrateDown,
	}

	syncCatalogCmd = &cobra.Command{
		Use:   "sync-catalog [acad-year]",
		Short: "从 NUSMods 同步某学年课程目录，如 2024-2025",
		Args:  cobra.ExactArgs(1),
		RunE:  runSyncCatalog,
	}
	syncTimeout time.Duration

	tokenCmd = &cobra.Command{
		Use:   "token [user-id]",
		Short: "签发调试用 Access Token",
		Args:  cobra.ExactArgs(1),
		RunE:  runToken,
	}
	tokenRole string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（缺省查找 ./config/config.yaml）")

	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)

	rootCmd.AddCommand(syncCatalogCmd)
	syncCatalogCmd.Flags().DurationVar(&syncTimeout, "timeout", 5*time.Minute, "同步超时时间")

	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenRole, "role", jwt.RoleStudent, "角色: student | admin")
}

// ── 公共初始化 ──

type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	sqlDB  *sql.DB
}

func bootstrap(withDB bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}
	if !withDB {
		return rt, nil
	}

	rt.db, err = database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	rt.sqlDB, err = rt.db.DB()
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) close() {
	if rt.sqlDB != nil {
		_ = rt.sqlDB.Close()
	}
	_ = rt.logger.Sync()
}

// ── 命令实现 ──

func runMigrateUp(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer rt.close()
	return database.RunMigrations(rt.sqlDB, rt.logger)
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer rt.close()
	return database.RollbackMigration(rt.sqlDB, rt.logger)
}

func runSyncCatalog(cmd *cobra.Command, args []string) error {
	if !handler.IsAcadYear(args[0]) {
		return fmt.Errorf("学年格式应为 YYYY-YYYY: %q", args[0])
	}

	rt, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer rt.close()

	var rdb *redis.Client
	if rt.cfg.Redis.Addr != "" {
		if rdb, err = redis.NewClient(&rt.cfg.Redis, rt.logger); err != nil {
			rt.logger.Warn("Redis 不可用，跳过先修树缓存清理", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	svc := service.NewService(rt.cfg, repository.NewRepository(rt.db), nusmods.NewClient(&rt.cfg.NUSMods, rt.logger), rdb, rt.logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
	defer cancel()

	resp, err := svc.Catalog.SyncCatalog(ctx, &dto.SyncCatalogRequest{AcadYear: args[0]})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenRole != jwt.RoleStudent && tokenRole != jwt.RoleAdmin {
		return fmt.Errorf("未知角色: %s", tokenRole)
	}

	rt, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer rt.close()

	token, err := jwt.NewManager(&rt.cfg.Auth).GenerateAccessToken(args[0], tokenRole)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
