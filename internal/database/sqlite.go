package database

import (
	"errors"
	"fmt"

	"github.com/Behrad-BeigZadeh/Servix/internal/booking"
	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/chat"
	"github.com/Behrad-BeigZadeh/Servix/internal/notification"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// seedCategories is the fixed browse taxonomy created on first start.
var seedCategories = []string{
	"Cleaning",
	"Tutoring",
	"Delivery",
	"Plumbing",
	"Electrician",
	"Moving",
	"Beauty & Wellness",
	"Pet Care",
	"Home Repair",
	"Tech Support",
	"Gardening",
	"Carpentry",
	"Fitness Training",
	"Event Planning",
	"Photography",
}

// OpenSQLite establishes a SQLite connection, migrates the schema and
// seeds the category taxonomy.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&users.User{},
		&catalog.Category{},
		&catalog.Service{},
		&booking.Booking{},
		&chat.ChatRoom{},
		&chat.Message{},
		&notification.Notification{},
	); err != nil {
		return nil, err
	}

	if err := seedCategoryTaxonomy(db); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

func seedCategoryTaxonomy(db *gorm.DB) error {
	for _, name := range seedCategories {
		var existing catalog.Category
		err := db.Where("name = ?", name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		record := catalog.Category{ID: uuid.NewString(), Name: name}
		if err := db.Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}
