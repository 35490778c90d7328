package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/users"
)

// Category groups services for browsing.
type Category struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	Name      string    `gorm:"column:name;size:190;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Category) TableName() string {
	return "categories"
}

// ImageList stores service image URLs as a JSON-encoded text column.
type ImageList []string

// Value implements driver.Valuer.
func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		l = ImageList{}
	}
	encoded, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan implements sql.Scanner.
func (l *ImageList) Scan(value interface{}) error {
	if value == nil {
		*l = ImageList{}
		return nil
	}
	switch data := value.(type) {
	case string:
		return json.Unmarshal([]byte(data), l)
	case []byte:
		return json.Unmarshal(data, l)
	default:
		return fmt.Errorf("catalog: cannot scan %T into ImageList", value)
	}
}

// Service is a bookable offering published by a provider.
type Service struct {
	ID          string     `gorm:"column:id;primaryKey;size:36"`
	Title       string     `gorm:"column:title;size:190;not null"`
	Description string     `gorm:"column:description;type:text;not null"`
	Price       float64    `gorm:"column:price;not null"`
	Images      ImageList  `gorm:"column:images;type:text"`
	CategoryID  string     `gorm:"column:category_id;size:36;not null;index"`
	Category    Category   `gorm:"foreignKey:CategoryID"`
	ProviderID  string     `gorm:"column:provider_id;size:36;not null;index"`
	Provider    users.User `gorm:"foreignKey:ProviderID"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Service) TableName() string {
	return "services"
}
