package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/funnelkit/qrstock/internal/cache"
	"github.com/funnelkit/qrstock/internal/config"
	"github.com/funnelkit/qrstock/internal/db"
	internalhttp "github.com/funnelkit/qrstock/internal/http"
	"github.com/funnelkit/qrstock/internal/http/api/admin/permissions"
	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/logging"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/funnelkit/qrstock/internal/security"
	"github.com/funnelkit/qrstock/internal/settings"
	"github.com/funnelkit/qrstock/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

// CreateAdminParams holds inputs for bootstrapping an admin account.
type CreateAdminParams struct {
	Username    string
	Password    string
	SuperAdmin  bool
	Permissions []string
}

// runtime carries what every command needs after loading configuration.
type runtime struct {
	cfg       config.Config
	conn      *gorm.DB
	logCloser io.Closer
}

func (r *runtime) Close() {
	if r.conn != nil {
		if sqlDB, err := r.conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if r.logCloser != nil {
		_ = r.logCloser.Close()
	}
}

// bootstrap loads config, configures logging, opens and migrates the database
// and loads the settings snapshot.
func bootstrap(ctx context.Context, appCfg config.AppConfig) (*runtime, error) {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logCloser: logCloser}

	conn, err := db.Open(cfg.Database.DSN, db.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		TimeZone:        cfg.Database.TimeZone,
		SlowThreshold:   cfg.Database.SlowThreshold,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.conn = conn
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		rt.Close()
		return nil, errMigrate
	}
	if errSettings := settings.RefreshDBConfigSnapshot(ctx, conn); errSettings != nil {
		rt.Close()
		return nil, fmt.Errorf("load settings: %w", errSettings)
	}
	log.WithFields(log.Fields{
		"config": configPath,
		"dsn":    util.HideSecret(cfg.Database.DSN),
	}).Debug("configuration loaded")
	return rt, nil
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, appCfg config.AppConfig) error {
	rt, err := bootstrap(ctx, appCfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	log.Info("migrations applied")
	return nil
}

// RunServer serves the admin API until ctx is cancelled, then shuts down gracefully.
func RunServer(ctx context.Context, appCfg config.AppConfig) error {
	rt, err := bootstrap(ctx, appCfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	var opts []inventory.Option
	var locker inventory.Locker
	if strings.TrimSpace(rt.cfg.Redis.Addr) != "" {
		redisCache, errRedis := cache.Connect(ctx, rt.cfg.Redis)
		if errRedis != nil {
			return errRedis
		}
		defer func() { _ = redisCache.Close() }()
		opts = append(opts, inventory.WithAlertCache(redisCache))
		locker = redisCache
		log.WithField("addr", rt.cfg.Redis.Addr).Info("redis alert cache enabled")
	}

	svc := inventory.NewService(rt.conn, opts...)
	inventory.NewReconciler(svc, locker).Start(ctx)

	srv := &http.Server{
		Addr:              rt.cfg.Server.Addr,
		Handler:           internalhttp.NewRouter(rt.cfg, rt.conn, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		log.Infof("qrstock admin API listening on %s", rt.cfg.Server.Addr)
		serverErrCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("shutdown: %w", errShutdown)
		}
		log.Info("server stopped")
		return nil
	case errServe := <-serverErrCh:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	}
}

// CreateAdmin inserts an admin account, failing when the username is taken.
func CreateAdmin(ctx context.Context, appCfg config.AppConfig, params CreateAdminParams) (models.Admin, error) {
	rt, err := bootstrap(ctx, appCfg)
	if err != nil {
		return models.Admin{}, err
	}
	defer rt.Close()
	return createAdmin(ctx, rt.conn, params)
}

func createAdmin(ctx context.Context, conn *gorm.DB, params CreateAdminParams) (models.Admin, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return models.Admin{}, errors.New("username is required")
	}
	hash, err := security.HashPassword(params.Password)
	if err != nil {
		return models.Admin{}, err
	}
	perms := permissions.NormalizePermissions(params.Permissions)
	if errValidate := permissions.ValidatePermissions(perms); errValidate != nil {
		return models.Admin{}, errValidate
	}
	rawPerms, err := permissions.MarshalPermissions(perms)
	if err != nil {
		return models.Admin{}, err
	}

	var existing int64
	if errCount := conn.WithContext(ctx).Model(&models.Admin{}).Where("username = ?", username).Count(&existing).Error; errCount != nil {
		return models.Admin{}, errCount
	}
	if existing > 0 {
		return models.Admin{}, fmt.Errorf("admin %q already exists", username)
	}

	now := nowUTC()
	admin := models.Admin{
		Username:     username,
		Password:     hash,
		Active:       true,
		IsAdmin:      true,
		IsSuperAdmin: params.SuperAdmin,
		Permissions:  datatypes.JSON(rawPerms),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		return models.Admin{}, errCreate
	}
	log.WithFields(log.Fields{"admin_id": admin.ID, "username": username, "super_admin": params.SuperAdmin}).Info("admin created")
	return admin, nil
}

// Reconcile runs one ledger reconcile pass over every batch that is not depleted.
func Reconcile(ctx context.Context, appCfg config.AppConfig) (inventory.ReconcileSummary, error) {
	rt, err := bootstrap(ctx, appCfg)
	if err != nil {
		return inventory.ReconcileSummary{}, err
	}
	defer rt.Close()
	return inventory.NewService(rt.conn).ReconcileAll(ctx)
}

// nowUTC returns the current UTC time.
func nowUTC() time.Time { return time.Now().UTC() }
