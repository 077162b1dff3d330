package models

type Product struct {
	Base
	CustomerID string `gorm:"type:varchar(36);index;not null" json:"customerId"`

	Brand        string  `gorm:"size:255" json:"brand"`
	Model        string  `gorm:"size:255" json:"model"`
	SerialNumber string  `gorm:"size:255" json:"serialNumber"`
	Description  *string `gorm:"type:text" json:"description"`
}
