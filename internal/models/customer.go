package models

type Customer struct {
	Base
	Name        string  `gorm:"size:255;not null" json:"name"`
	Company     string  `gorm:"size:255" json:"company"`
	Position    *string `gorm:"size:255" json:"position"`
	Email       string  `gorm:"size:255" json:"email"`
	PhoneNumber string  `gorm:"size:50" json:"phoneNumber"`
	Address     *string `gorm:"type:text" json:"address"`

	Products []Product `json:"products,omitempty"`
}
