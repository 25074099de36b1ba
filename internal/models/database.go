package models

import (
	"fmt"

	"github.com/stagecast/distributor/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Unique-constraint races on the override triples must surface as
		// gorm.ErrDuplicatedKey so the upsert can retry as an update.
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

func AutoMigrate() error {
	return MigrateAll(DB)
}

// MigrateAll migrates the full entity graph on the given connection.
// Split out from AutoMigrate so tests can run against their own database.
func MigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Device{},
		&SoundCard{},
		&Router{},
		&RouterService{},
		&Stage{},
		&StageAdmin{},
		&StageSoundEditor{},
		&Group{},
		&StageMember{},
		&StageDevice{},
		&AudioTrack{},
		&VideoTrack{},
		&CustomGroupPosition{},
		&CustomGroupVolume{},
		&CustomStageMemberPosition{},
		&CustomStageMemberVolume{},
		&CustomStageDevicePosition{},
		&CustomStageDeviceVolume{},
		&CustomAudioTrackPosition{},
		&CustomAudioTrackVolume{},
		&SchedulerLock{},
	)
}

func GetDB() *gorm.DB {
	return DB
}
