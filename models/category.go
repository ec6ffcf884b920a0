package models

import (
	"errors"

	"gorm.io/gorm"
)

// Category is reference data: append-only, unique by name.
type Category struct {
	ID   int    `gorm:"primary_key" json:"id"`
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Icon string `gorm:"size:100" json:"icon"`
}

func (c Category) GetId() int {
	return c.ID
}

func ListCategories(db *gorm.DB) ([]Category, error) {
	var categories []Category
	if err := db.Order("name").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func CreateCategory(db *gorm.DB, name, icon string) (*Category, error) {
	if name == "" {
		return nil, errors.New("category name is required")
	}
	category := Category{Name: name, Icon: icon}
	if err := db.Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// SeedDefaultCategories installs the stock category set on first run.
// Existing names are left untouched.
func SeedDefaultCategories(db *gorm.DB) error {
	defaults := []Category{
		{Name: "Food", Icon: "ic_food"},
		{Name: "Transport", Icon: "ic_transport"},
		{Name: "Shopping", Icon: "ic_shopping"},
		{Name: "Bills", Icon: "ic_bills"},
		{Name: "Entertainment", Icon: "ic_entertainment"},
		{Name: "Health", Icon: "ic_health"},
		{Name: "Other", Icon: "ic_other"},
	}
	for _, category := range defaults {
		if err := db.Where("name = ?", category.Name).FirstOrCreate(&category).Error; err != nil {
			return err
		}
	}
	return nil
}
