package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"trash4cash/internal/gateway"
	id "trash4cash/pkg/domain"
)

// TestIDs provides pre-generated IDs for deterministic test data.
var TestIDs = struct {
	SessionID1 id.SessionID
	SessionID2 id.SessionID
}{
	SessionID1: id.SessionID(uuid.MustParse("eeee0000-0000-0000-0000-000000000001")),
	SessionID2: id.SessionID(uuid.MustParse("eeee0000-0000-0000-0000-000000000002")),
}

// FixedTime is the creation time used by builders unless overridden.
var FixedTime = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

// DropoffBuilder builds raw backend dropoff records.
type DropoffBuilder struct {
	raw gateway.RawRecord
}

// NewDropoff creates a pending dropoff owned by a test user.
func NewDropoff(dropoffID string) *DropoffBuilder {
	return &DropoffBuilder{raw: gateway.RawRecord{
		"id":            dropoffID,
		"userId":        "user-1",
		"status":        "PENDING",
		"totalWeight":   2.0,
		"totalAmount":   10000.0,
		"pickupAddress": "Jl. Merdeka, Bandung",
		"createdAt":     FixedTime.Format(time.RFC3339),
		"updatedAt":     FixedTime.Format(time.RFC3339),
		"user": map[string]any{
			"id":    "user-1",
			"name":  "Test User",
			"email": "test@example.com",
		},
	}}
}

func (b *DropoffBuilder) WithStatus(status string) *DropoffBuilder {
	b.raw["status"] = status
	return b
}

func (b *DropoffBuilder) WithAddress(addr string) *DropoffBuilder {
	b.raw["pickupAddress"] = addr
	return b
}

func (b *DropoffBuilder) WithOwner(name, email string) *DropoffBuilder {
	b.raw["user"] = map[string]any{"id": "user-" + name, "name": name, "email": email}
	return b
}

func (b *DropoffBuilder) WithWeight(kg float64) *DropoffBuilder {
	b.raw["totalWeight"] = kg
	return b
}

func (b *DropoffBuilder) WithCreatedAt(t time.Time) *DropoffBuilder {
	b.raw["createdAt"] = t.Format(time.RFC3339)
	return b
}

func (b *DropoffBuilder) Build() gateway.RawRecord {
	return clone(b.raw)
}

// NewTransaction creates a raw deposit transaction.
func NewTransaction(txID, status string, amount float64) gateway.RawRecord {
	return gateway.RawRecord{
		"id":        txID,
		"userId":    "user-1",
		"status":    status,
		"type":      "DEPOSIT",
		"amount":    amount,
		"createdAt": FixedTime.Format(time.RFC3339),
		"user":      map[string]any{"id": "user-1", "name": "Test User", "email": "test@example.com"},
	}
}

// NewWasteType creates a raw waste type.
func NewWasteType(wasteTypeID, name string, pricePerKg float64, active bool) gateway.RawRecord {
	return gateway.RawRecord{
		"id":         wasteTypeID,
		"name":       name,
		"pricePerKg": pricePerKg,
		"isActive":   active,
		"createdAt":  FixedTime.Format(time.RFC3339),
	}
}

// NewWasteBank creates a raw waste bank.
func NewWasteBank(bankID, name, address string) gateway.RawRecord {
	return gateway.RawRecord{
		"id":        bankID,
		"name":      name,
		"address":   address,
		"latitude":  -6.2,
		"longitude": 106.8,
		"createdAt": FixedTime.Format(time.RFC3339),
	}
}

// Dropoffs builds n pending dropoffs with ids d01..dNN. The addresses of the
// indexes listed in jakarta are set to Jakarta.
func Dropoffs(n int, jakarta ...int) []gateway.RawRecord {
	inJakarta := make(map[int]bool, len(jakarta))
	for _, i := range jakarta {
		inJakarta[i] = true
	}
	out := make([]gateway.RawRecord, 0, n)
	for i := 1; i <= n; i++ {
		b := NewDropoff(fmt.Sprintf("d%02d", i))
		if inJakarta[i] {
			b.WithAddress(fmt.Sprintf("Jl. Sudirman %d, Jakarta Selatan", i))
		}
		out = append(out, b.Build())
	}
	return out
}
