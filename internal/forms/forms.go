package forms

import (
	"strings"

	"trash4cash/internal/gateway"
	"trash4cash/internal/resource/format"
	dErrors "trash4cash/pkg/domain-errors"
)

// Pickup methods accepted when creating a dropoff.
const (
	PickupMethodPickup  = "PICKUP"
	PickupMethodDropOff = "DROP_OFF"
)

// DropoffForm schedules a new dropoff.
type DropoffForm struct {
	PickupAddress string `json:"pickupAddress" validate:"required,max=255"`
	PickupDate    string `json:"pickupDate" validate:"required,datetime=2006-01-02,future_date"`
	PickupMethod  string `json:"pickupMethod" validate:"required,oneof=PICKUP DROP_OFF"`
	Notes         string `json:"notes,omitempty" validate:"max=500"`
}

func (f *DropoffForm) Normalize() {
	f.PickupAddress = strings.TrimSpace(f.PickupAddress)
	f.PickupDate = strings.TrimSpace(f.PickupDate)
	f.PickupMethod = strings.ToUpper(strings.TrimSpace(f.PickupMethod))
	if f.PickupMethod == "" {
		f.PickupMethod = PickupMethodPickup
	}
	f.Notes = strings.TrimSpace(f.Notes)
}

func (f *DropoffForm) Validate() error { return Validate(f) }

// WasteTypeForm creates a waste type. It is sent as multipart/form-data.
type WasteTypeForm struct {
	Name        string            `json:"name" validate:"required,max=100"`
	PricePerKg  float64           `json:"pricePerKg" validate:"required,gt=0"`
	Description string            `json:"description,omitempty" validate:"max=500"`
	IsActive    *bool             `json:"isActive,omitempty"`
	Image       *gateway.FilePart `json:"-"`
}

func (f *WasteTypeForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
}

func (f *WasteTypeForm) Validate() error { return Validate(f) }

func (f *WasteTypeForm) MultipartFields() map[string]string {
	fields := map[string]string{
		"name":       f.Name,
		"pricePerKg": format.Plain(f.PricePerKg),
	}
	if f.Description != "" {
		fields["description"] = f.Description
	}
	if f.IsActive != nil {
		fields["isActive"] = boolString(*f.IsActive)
	}
	return fields
}

func (f *WasteTypeForm) MultipartFiles() []gateway.FilePart {
	if f.Image == nil {
		return nil
	}
	return []gateway.FilePart{*f.Image}
}

// WasteTypeUpdate edits a waste type; only set fields are sent.
type WasteTypeUpdate struct {
	Name        *string           `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	PricePerKg  *float64          `json:"pricePerKg,omitempty" validate:"omitempty,gt=0"`
	Description *string           `json:"description,omitempty" validate:"omitempty,max=500"`
	IsActive    *bool             `json:"isActive,omitempty"`
	Image       *gateway.FilePart `json:"-"`
}

func (f *WasteTypeUpdate) Validate() error {
	if f.Name == nil && f.PricePerKg == nil && f.Description == nil && f.IsActive == nil && f.Image == nil {
		return dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	return Validate(f)
}

func (f *WasteTypeUpdate) MultipartFields() map[string]string {
	fields := map[string]string{}
	if f.Name != nil {
		fields["name"] = strings.TrimSpace(*f.Name)
	}
	if f.PricePerKg != nil {
		fields["pricePerKg"] = format.Plain(*f.PricePerKg)
	}
	if f.Description != nil {
		fields["description"] = strings.TrimSpace(*f.Description)
	}
	if f.IsActive != nil {
		fields["isActive"] = boolString(*f.IsActive)
	}
	return fields
}

func (f *WasteTypeUpdate) MultipartFiles() []gateway.FilePart {
	if f.Image == nil {
		return nil
	}
	return []gateway.FilePart{*f.Image}
}

// WasteBankForm creates a waste bank.
type WasteBankForm struct {
	Name         string   `json:"name" validate:"required,max=100"`
	Address      string   `json:"address" validate:"required,max=255"`
	Phone        string   `json:"phone,omitempty" validate:"omitempty,max=20"`
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	OpeningHours string   `json:"openingHours,omitempty" validate:"max=100"`
}

func (f *WasteBankForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Address = strings.TrimSpace(f.Address)
	f.Phone = strings.TrimSpace(f.Phone)
}

func (f *WasteBankForm) Validate() error { return Validate(f) }

// WasteBankUpdate edits a waste bank's name or address.
type WasteBankUpdate struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Address *string `json:"address,omitempty" validate:"omitempty,min=1,max=255"`
}

func (f *WasteBankUpdate) Validate() error {
	if f.Name == nil && f.Address == nil {
		return dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	return Validate(f)
}

// LoginForm carries operator credentials.
type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (f *LoginForm) Normalize() {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
}

func (f *LoginForm) Validate() error { return Validate(f) }

// ProfileForm edits the operator's own profile. It is sent as
// multipart/form-data; name, phone and address are always sent, images only
// when uploaded.
type ProfileForm struct {
	Name            string            `json:"name" validate:"required,max=100"`
	Phone           string            `json:"phone" validate:"max=20"`
	Address         string            `json:"address" validate:"max=255"`
	ProfileImage    *gateway.FilePart `json:"-"`
	BackgroundPhoto *gateway.FilePart `json:"-"`
}

func (f *ProfileForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
}

func (f *ProfileForm) Validate() error { return Validate(f) }

func (f *ProfileForm) MultipartFields() map[string]string {
	return map[string]string{
		"name":    f.Name,
		"phone":   f.Phone,
		"address": f.Address,
	}
}

func (f *ProfileForm) MultipartFiles() []gateway.FilePart {
	var files []gateway.FilePart
	if f.ProfileImage != nil {
		files = append(files, *f.ProfileImage)
	}
	if f.BackgroundPhoto != nil {
		files = append(files, *f.BackgroundPhoto)
	}
	return files
}

// MinPasswordLength is the shortest password the console accepts.
const MinPasswordLength = 10

// PasswordForm changes the operator's password. Only the new password is
// sent; the confirmation never leaves the console.
type PasswordForm struct {
	NewPassword     string `json:"newPassword" validate:"required,min=10"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

func (f *PasswordForm) Validate() error { return Validate(f) }

// Payload is the JSON body of the password change.
func (f *PasswordForm) Payload() map[string]string {
	return map[string]string{"password": f.NewPassword}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
