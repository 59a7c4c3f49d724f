package dashboard

// UserStats counts platform members.
type UserStats struct {
	Count int `json:"count"`
	// ActiveUsers were active within the activity window.
	ActiveUsers int `json:"activeUsers"`
}

type DropoffStats struct {
	Count          int `json:"count"`
	RecentDropoffs int `json:"recentDropoffs"`
}

type TransactionStats struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
	// Formatted is TotalAmount in rupiah.
	Formatted string `json:"formatted"`
}

// WasteStats aggregates the collected amount of every waste type.
type WasteStats struct {
	Count              int     `json:"count"`
	TotalWeight        float64 `json:"totalWeight"`
	TopWasteType       string  `json:"topWasteType"`
	TopWastePercentage int     `json:"topWastePercentage"`
}

// Person is the avatar shown next to a recent item.
type Person struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type RecentTransaction struct {
	ID     string `json:"id"`
	User   Person `json:"user"`
	Amount string `json:"amount"`
	Status string `json:"status"`
	Type   string `json:"type"`
	Date   string `json:"date"`
}

type RecentDropoff struct {
	ID        string `json:"id"`
	User      Person `json:"user"`
	WasteType string `json:"wasteType"`
	Weight    string `json:"weight"`
	Points    string `json:"points"`
	Status    string `json:"status"`
	Date      string `json:"date"`
}

// Stats is the dashboard view. A section that failed to load is nil (or
// empty for recent items) and named in Failed.
type Stats struct {
	Users              *UserStats          `json:"userStats,omitempty"`
	Dropoffs           *DropoffStats       `json:"dropoffStats,omitempty"`
	Transactions       *TransactionStats   `json:"transactionStats,omitempty"`
	Waste              *WasteStats         `json:"wasteStats,omitempty"`
	RecentTransactions []RecentTransaction `json:"recentTransactions"`
	RecentDropoffs     []RecentDropoff     `json:"recentDropoffs"`
	IsError            bool                `json:"isError"`
	Failed             []string            `json:"failed,omitempty"`
}
