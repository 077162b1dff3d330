package models

// Каталог услуг, которые инженер отмечает в отчёте
type Service struct {
	Base
	Name string `gorm:"size:255;not null" json:"name"`
}

// Категория обслуживания (ремонт, установка, профилактика и т.п.)
type Category struct {
	Base
	Name string `gorm:"size:255;not null" json:"name"`
}
