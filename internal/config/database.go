package config

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"opd-desk/internal/store"
	"opd-desk/pkg/utils"
)

// Backend is the connected store plus the optional doctor notifier, which only
// exists when Firebase is in use.
type Backend struct {
	Store    store.Store
	Notifier *utils.DoctorNotifier
}

// ConnectStore opens the store selected by STORE_DRIVER.
func ConnectStore(ctx context.Context, cfg *Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case DriverFirestore:
		return connectFirebase(ctx, cfg, log)

	case DriverMySQL:
		db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		st, err := store.NewSQL(db, cfg.PollInterval, log)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("connected to mysql document store")
		return &Backend{Store: st}, nil

	case DriverMemory:
		log.Warn().Msg("using in-memory store, records are lost on exit")
		return &Backend{Store: store.NewMemory()}, nil
	}
	return nil, fmt.Errorf("%w: %q", store.ErrUnknownStore, cfg.StoreDriver)
}

func connectFirebase(ctx context.Context, cfg *Config, log zerolog.Logger) (*Backend, error) {
	var fbCfg *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, option.WithCredentialsFile(cfg.FirebaseCredentials))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}

	b := &Backend{Store: store.NewFirestore(client, log)}

	if cfg.NotifyDoctors {
		n, err := utils.InitFCM(ctx, app, log)
		if err != nil {
			// Registration never depends on notifications.
			log.Error().Err(err).Msg("firebase cloud messaging unavailable, doctor notifications off")
		} else {
			b.Notifier = n
		}
	}
	return b, nil
}
