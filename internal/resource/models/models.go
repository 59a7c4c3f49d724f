// Package models holds the canonical shapes the console works with after
// upstream records have been normalized.
package models

import "time"

// Owner is the denormalized user subset embedded in dropoffs and transactions.
type Owner struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Dropoff is a batch of waste handed over by a user for pickup or at a bank.
type Dropoff struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Owner     Owner     `json:"user"`
	Status    string    `json:"status"`
	Weight    float64   `json:"weight"`
	Points    float64   `json:"points"`
	WasteType string    `json:"wasteType"`
	Location  string    `json:"location,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (d Dropoff) RecordID() string     { return d.ID }
func (d Dropoff) RecordStatus() string { return d.Status }

func (d Dropoff) WithStatus(status string) Dropoff {
	d.Status = status
	return d
}

// Transaction is a points deposit or a withdrawal request.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Owner     Owner     `json:"user"`
	Status    string    `json:"status"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	Details   string    `json:"details,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t Transaction) RecordID() string     { return t.ID }
func (t Transaction) RecordStatus() string { return t.Status }

func (t Transaction) WithStatus(status string) Transaction {
	t.Status = status
	return t
}

// WasteType is a category of accepted waste with its buying price.
type WasteType struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	PricePerKg      float64   `json:"pricePerKg"`
	Description     string    `json:"description,omitempty"`
	Image           string    `json:"image,omitempty"`
	IsActive        bool      `json:"isActive"`
	CollectedAmount float64   `json:"collectedAmount,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (w WasteType) RecordID() string { return w.ID }

func (w WasteType) RecordStatus() string {
	if w.IsActive {
		return StatusActive
	}
	return StatusInactive
}

func (w WasteType) WithStatus(status string) WasteType {
	w.IsActive = status == StatusActive
	return w
}

// WasteBank is a physical collection point.
type WasteBank struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone,omitempty"`
	Latitude     float64   `json:"latitude,omitempty"`
	Longitude    float64   `json:"longitude,omitempty"`
	OpeningHours string    `json:"openingHours,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (b WasteBank) RecordID() string { return b.ID }

// RecordStatus is always empty: waste banks have no status lifecycle.
func (b WasteBank) RecordStatus() string { return "" }

func (b WasteBank) WithStatus(string) WasteBank { return b }

// User is a platform member as seen by the console.
type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Address         string    `json:"address,omitempty"`
	ProfileImage    string    `json:"profileImage,omitempty"`
	BackgroundPhoto string    `json:"backgroundPhoto,omitempty"`
	LastActive      time.Time `json:"lastActive,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
