package models

import (
	"errors"
	"os"
	"time"

	"github.com/ttacon/libphonenumber"
	"gorm.io/gorm"
)

// ProfileID is the fixed primary key of the singleton profile row.
const ProfileID = 1

type Profile struct {
	ID       int        `gorm:"primary_key" json:"id"`
	Name     string     `gorm:"size:255;not null" json:"name"`
	DOB      *time.Time `json:"dob"`
	City     string     `gorm:"size:100" json:"city"`
	State    string     `gorm:"size:100" json:"state"`
	Mobile   string     `gorm:"size:32" json:"mobile"`
	ImageURI string     `gorm:"size:500" json:"image_uri"`
	Gender   string     `gorm:"size:20" json:"gender"`
}

// GetProfile returns the singleton row, or nil when the user has not set
// one up.
func GetProfile(db *gorm.DB) (*Profile, error) {
	var profile Profile
	err := db.First(&profile, ProfileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertProfile writes the singleton row, forcing the fixed ID.
func UpsertProfile(db *gorm.DB, profile *Profile) error {
	if profile.Mobile != "" {
		if err := validateMobile(profile.Mobile); err != nil {
			return err
		}
	}
	profile.ID = ProfileID
	return db.Save(profile).Error
}

func validateMobile(mobile string) error {
	region := os.Getenv("PHONE_REGION")
	if region == "" {
		region = "IN"
	}
	num, err := libphonenumber.Parse(mobile, region)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(num) {
		return errors.New("mobile number is not valid")
	}
	return nil
}
