package content

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order statuses. Everything except draft counts as confirmed.
const (
	OrderStatusDraft              = "draft"
	OrderStatusUnfulfilled        = "unfulfilled"
	OrderStatusPartiallyFulfilled = "partially_fulfilled"
	OrderStatusFulfilled          = "fulfilled"
	OrderStatusCanceled           = "canceled"
)

type Order struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"column:user_id;size:64;index" json:"user_id"`
	Status    string          `gorm:"column:status;size:32;not null;default:unfulfilled" json:"status"`
	Currency  string          `gorm:"column:currency;size:3;not null" json:"currency"`
	Total     decimal.Decimal `gorm:"column:total;type:numeric(20,6);not null" json:"total"`
	TotalPaid decimal.Decimal `gorm:"column:total_paid;type:numeric(20,6);not null" json:"total_paid"`
	Lines     []OrderLine     `gorm:"foreignKey:OrderID" json:"lines"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (Order) TableName() string { return "orders" }

// IsConfirmed reports whether the order left the draft state.
func (o Order) IsConfirmed() bool {
	return o.Status != OrderStatusDraft
}

// IsFullyPaid reports whether captured payments cover the order total.
func (o Order) IsFullyPaid() bool {
	return o.TotalPaid.GreaterThanOrEqual(o.Total)
}

type OrderLine struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderID     uint   `gorm:"column:order_id;not null;index" json:"order_id"`
	VariantID   uint   `gorm:"column:variant_id;not null;index" json:"variant_id"`
	ProductName string `gorm:"column:product_name;size:255" json:"product_name"`
	Quantity    int    `gorm:"column:quantity;not null" json:"quantity"`
}

func (OrderLine) TableName() string { return "order_lines" }

// DigitalContent is the downloadable file attached to a product variant.
// Nil limits mean unlimited.
type DigitalContent struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	VariantID          uint   `gorm:"column:variant_id;not null;uniqueIndex" json:"variant_id"`
	ContentFile        string `gorm:"column:content_file;size:512;not null" json:"content_file"`
	UseDefaultSettings bool   `gorm:"column:use_default_settings;not null" json:"use_default_settings"`
	MaxDownloads       *int   `gorm:"column:max_downloads" json:"max_downloads,omitempty"`
	URLValidDays       *int   `gorm:"column:url_valid_days" json:"url_valid_days,omitempty"`
}

func (DigitalContent) TableName() string { return "digital_contents" }

// DigitalContentURL is a tokenized download link for purchased content.
type DigitalContentURL struct {
	ID          uint           `gorm:"primaryKey" json:"-"`
	Token       string         `gorm:"column:token;size:36;not null;uniqueIndex" json:"token"`
	ContentID   uint           `gorm:"column:content_id;not null;index" json:"content_id"`
	Content     DigitalContent `gorm:"foreignKey:ContentID" json:"-"`
	LineID      *uint          `gorm:"column:line_id" json:"line_id,omitempty"`
	DownloadNum int            `gorm:"column:download_num;not null;default:0" json:"download_num"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (DigitalContentURL) TableName() string { return "digital_content_urls" }

func (u *DigitalContentURL) BeforeCreate(_ *gorm.DB) error {
	if u.Token == "" {
		u.Token = uuid.NewString()
	}
	return nil
}
