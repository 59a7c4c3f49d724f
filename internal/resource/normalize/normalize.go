// Package normalize maps raw backend records onto the console's canonical
// models. Missing optional fields get deterministic fallbacks; only a record
// without an id is rejected.
package normalize

import (
	"strings"

	"trash4cash/internal/gateway"
	"trash4cash/internal/resource/models"
	dErrors "trash4cash/pkg/domain-errors"
)

const (
	UnknownUser      = "Unknown User"
	UnknownWasteType = "Unknown"
	MixedWaste       = "Mixed waste"
)

// ErrMissingID is wrapped by every normalizer when the record has no id.
var ErrMissingID = dErrors.New(dErrors.CodeBadRequest, "record has no id")

func requireID(raw gateway.RawRecord, kind string) (string, error) {
	id := text(raw, "id")
	if id == "" {
		return "", dErrors.Wrap(ErrMissingID, dErrors.CodeBadRequest, kind+" record has no id")
	}
	return id, nil
}

// Owner extracts the embedded user subset.
func Owner(raw gateway.RawRecord) models.Owner {
	u := nested(raw, "user")
	if u == nil {
		return models.Owner{ID: text(raw, "userId"), Name: UnknownUser}
	}
	owner := models.Owner{
		ID:           firstText(u, "id"),
		Name:         firstText(u, "name", "fullName", "username"),
		Email:        text(u, "email"),
		ProfileImage: firstText(u, "profileImage", "profilePicture"),
	}
	if owner.ID == "" {
		owner.ID = text(raw, "userId")
	}
	if owner.Name == "" {
		owner.Name = UnknownUser
	}
	return owner
}

// Dropoff normalizes a dropoff. Weight and points come from totalWeight and
// totalAmount; the waste type summary joins item waste type names.
func Dropoff(raw gateway.RawRecord) (models.Dropoff, error) {
	id, err := requireID(raw, "dropoff")
	if err != nil {
		return models.Dropoff{}, err
	}
	owner := Owner(raw)
	return models.Dropoff{
		ID:        id,
		UserID:    firstText(raw, "userId", "user_id"),
		Owner:     owner,
		Status:    text(raw, "status"),
		Weight:    number(raw, "totalWeight"),
		Points:    number(raw, "totalAmount"),
		WasteType: wasteSummary(raw),
		Location:  firstText(raw, "pickupAddress", "location"),
		Notes:     text(raw, "notes"),
		CreatedAt: timestamp(raw, "createdAt"),
		UpdatedAt: timestamp(raw, "updatedAt"),
	}, nil
}

func wasteSummary(raw gateway.RawRecord) string {
	items, ok := raw["wasteItems"].([]any)
	if !ok || len(items) == 0 {
		return MixedWaste
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		name := ""
		if m, ok := it.(map[string]any); ok {
			if wt := nested(m, "wasteType"); wt != nil {
				name = text(wt, "name")
			}
		}
		if name == "" {
			name = UnknownWasteType
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// Transaction normalizes a transaction; type defaults to DEPOSIT and status
// to PENDING.
func Transaction(raw gateway.RawRecord) (models.Transaction, error) {
	id, err := requireID(raw, "transaction")
	if err != nil {
		return models.Transaction{}, err
	}
	t := models.Transaction{
		ID:        id,
		UserID:    firstText(raw, "userId", "user_id"),
		Owner:     Owner(raw),
		Status:    text(raw, "status"),
		Type:      text(raw, "type"),
		Amount:    number(raw, "amount"),
		Details:   firstText(raw, "details", "description"),
		Notes:     text(raw, "notes"),
		CreatedAt: timestamp(raw, "createdAt"),
		UpdatedAt: timestamp(raw, "updatedAt"),
	}
	if t.Type == "" {
		t.Type = "DEPOSIT"
	}
	if t.Status == "" {
		t.Status = models.StatusPending
	}
	return t, nil
}

// WasteType normalizes a waste type. A record without isActive is active.
func WasteType(raw gateway.RawRecord) (models.WasteType, error) {
	id, err := requireID(raw, "waste type")
	if err != nil {
		return models.WasteType{}, err
	}
	active, present := flag(raw, "isActive")
	if !present {
		active = true
	}
	return models.WasteType{
		ID:              id,
		Name:            text(raw, "name"),
		PricePerKg:      number(raw, "pricePerKg"),
		Description:     text(raw, "description"),
		Image:           firstText(raw, "image", "imageUrl"),
		IsActive:        active,
		CollectedAmount: number(raw, "collectedAmount"),
		CreatedAt:       timestamp(raw, "createdAt"),
		UpdatedAt:       timestamp(raw, "updatedAt"),
	}, nil
}

// WasteBank normalizes a waste bank.
func WasteBank(raw gateway.RawRecord) (models.WasteBank, error) {
	id, err := requireID(raw, "waste bank")
	if err != nil {
		return models.WasteBank{}, err
	}
	return models.WasteBank{
		ID:           id,
		Name:         text(raw, "name"),
		Address:      text(raw, "address"),
		Phone:        firstText(raw, "phone", "phoneNumber"),
		Latitude:     number(raw, "latitude"),
		Longitude:    number(raw, "longitude"),
		OpeningHours: firstText(raw, "openingHours", "operationalHours"),
		CreatedAt:    timestamp(raw, "createdAt"),
		UpdatedAt:    timestamp(raw, "updatedAt"),
	}, nil
}

// User normalizes a platform user.
func User(raw gateway.RawRecord) (models.User, error) {
	id, err := requireID(raw, "user")
	if err != nil {
		return models.User{}, err
	}
	u := models.User{
		ID:              id,
		Name:            firstText(raw, "name", "fullName", "username"),
		Email:           text(raw, "email"),
		Role:            text(raw, "role"),
		Phone:           firstText(raw, "phone", "phoneNumber"),
		Address:         text(raw, "address"),
		ProfileImage:    firstText(raw, "profileImage", "profilePicture"),
		BackgroundPhoto: text(raw, "backgroundPhoto"),
		LastActive:      timestamp(raw, "lastActive"),
		CreatedAt:       timestamp(raw, "createdAt"),
	}
	if u.Name == "" {
		u.Name = UnknownUser
	}
	return u, nil
}
