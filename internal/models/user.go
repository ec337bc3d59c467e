package models

import "time"

type User struct {
	ID          UserID     `json:"id" example:"1"`
	Email       string     `json:"email" example:"user@example.com"`
	FirstName   string     `json:"firstName" example:"John"`
	LastName    string     `json:"lastName" example:"Doe"`
	PhoneNumber string     `json:"phoneNumber" example:"+919876543210"`
	Address     string     `json:"address"`
	DateOfBirth string     `json:"dateOfBirth"`
	IsActive    bool       `json:"isActive"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
