package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	inhttp "github.com/suchimauz/ev-charge-schedule-sync/internal/adapters/in/http"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/adapters/in/rabbitmq"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/adapters/out/cloudapi"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/adapters/out/inventory"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/adapters/out/logger"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/adapters/out/mappingstore"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/adapters/out/schedulestore"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/config"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/services/schedulesync"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера с таймзоной
	mainLogger, err := logger.NewConsoleLogger(cfg.App.Timezone)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := mainLogger.WithModule("Main")

	log.Info("app.starting", out.LogFields{
		"version":         cfg.App.Version,
		"env":             cfg.App.Env,
		"timezone":        cfg.App.Timezone,
		"syncEnabled":     cfg.Sync.Enabled,
		"syncInterval":    cfg.Sync.Interval.String(),
		"rabbitmqEnabled": cfg.RabbitMQ.Enabled,
		"vehicles":        len(cfg.Vehicles.Serials),
	})

	// Настройка Gin в зависимости от окружения
	if cfg.IsNotLocal() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Инициализация адаптеров
	cloudAdapter := cloudapi.NewCloudAdapter(cfg, mainLogger.WithModule("CloudAdapter"))
	inventoryAdapter := inventory.NewStaticInventoryAdapter(cfg)

	mappingAdapter, err := newMappingStore(cfg, mainLogger)
	if err != nil {
		log.Error("app.mapping_store.init_failed", out.LogFields{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	storeAdapter, err := newScheduleStore(cfg, mainLogger)
	if err != nil {
		log.Error("app.schedule_store.init_failed", out.LogFields{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	// Инициализация сервиса синхронизации
	syncService, err := schedulesync.NewService(
		cfg,
		cloudAdapter,
		cloudAdapter,
		storeAdapter,
		mappingAdapter,
		inventoryAdapter,
		mainLogger,
	)
	if err != nil {
		log.Error("app.sync.init_failed", out.LogFields{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := syncService.Start(ctx); err != nil {
		log.Error("app.sync.start_failed", out.LogFields{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	defer syncService.Stop()

	// Настройка HTTP сервера
	router := gin.Default()
	controller := inhttp.NewSyncController(syncService, cfg)
	controller.RegisterRoutes(router)

	// Настройка RabbitMQ слушателя только если он включен
	if cfg.RabbitMQ.Enabled {
		listener, err := rabbitmq.NewVehicleDataListener(
			syncService,
			cfg,
			mainLogger.WithModule("RabbitMQListener"),
		)
		if err != nil {
			log.Error("app.rabbitmq.init_failed", out.LogFields{
				"error": err.Error(),
			})
			os.Exit(1)
		}

		if err := listener.Start(ctx); err != nil {
			log.Error("app.rabbitmq.start_failed", out.LogFields{
				"error": err.Error(),
			})
			os.Exit(1)
		}

		defer func() {
			if err := listener.Stop(); err != nil {
				log.Error("app.rabbitmq.stop_failed", out.LogFields{
					"error": err.Error(),
				})
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("app.http.starting", out.LogFields{
			"host": cfg.HTTP.Host,
			"port": cfg.HTTP.Port,
		})

		if err := router.Run(cfg.HTTP.Host + ":" + cfg.HTTP.Port); err != nil {
			log.Error("app.http.failed", out.LogFields{
				"error": err.Error(),
			})
			sigChan <- syscall.SIGTERM
		}
	}()

	sig := <-sigChan
	log.Info("app.shutdown.initiated", out.LogFields{
		"signal": sig.String(),
	})
}

func newMappingStore(cfg *config.Config, mainLogger *logger.ConsoleLogger) (out.MappingStorePort, error) {
	switch cfg.MappingStore.Driver {
	case "sqlite":
		return mappingstore.NewSqliteAdapter(cfg.MappingStore.Path, mainLogger.WithModule("MappingStore"))
	case "file":
		return mappingstore.NewFileAdapter(cfg.MappingStore.Path, mainLogger.WithModule("MappingStore")), nil
	default:
		return nil, fmt.Errorf("unknown mapping store driver: %s", cfg.MappingStore.Driver)
	}
}

func newScheduleStore(cfg *config.Config, mainLogger *logger.ConsoleLogger) (out.ScheduleStorePort, error) {
	switch cfg.ScheduleStore.Driver {
	case "file":
		return schedulestore.NewFileAdapter(cfg.ScheduleStore.Path, mainLogger.WithModule("ScheduleStore"))
	case "memory":
		return schedulestore.NewMemoryAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown schedule store driver: %s", cfg.ScheduleStore.Driver)
	}
}
