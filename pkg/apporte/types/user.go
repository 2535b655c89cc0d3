package types

import (
	"fmt"
	"time"
)

// UserStatus is the account status reported by the API
type UserStatus string

// User statuses
const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// Validate checks the status against the known set
func (s UserStatus) Validate() error {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return nil
	default:
		return fmt.Errorf("unknown user status %q (want active, inactive or suspended)", string(s))
	}
}

// User is the authenticated identity and the row type of admin user listings.
type User struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       *string    `json:"phone"`
	Avatar      *string    `json:"avatar"`
	Status      UserStatus `json:"status"`
	RoleID      *int64     `json:"role_id"`
	BranchID    *int64     `json:"branch_id"`
	Role        *Role      `json:"role,omitempty"`
	Branch      *Branch    `json:"branch,omitempty"`
	Client      *Client    `json:"client,omitempty"`
	Rider       *Rider     `json:"rider,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// RoleName returns the role name or "" when the user has no role
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// Role groups permissions; Permissions is the role's own grant list.
type Role struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Permissions []string `json:"permissions"`
}

// Branch is an operating location of the delivery network
type Branch struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

// Client is the business account attached to client-portal users
type Client struct {
	ID            int64   `json:"id"`
	UserID        int64   `json:"user_id"`
	CompanyName   string  `json:"company_name"`
	BusinessType  *string `json:"business_type"`
	WalletBalance float64 `json:"wallet_balance"`
	CreditLimit   float64 `json:"credit_limit"`
	BillingCycle  string  `json:"billing_cycle"`
	IsVerified    bool    `json:"is_verified"`
	IsActive      bool    `json:"is_active"`
}

// RiderAvailability is a rider's dispatch availability
type RiderAvailability string

// Rider availabilities
const (
	RiderAvailable RiderAvailability = "available"
	RiderBusy      RiderAvailability = "busy"
	RiderOffline   RiderAvailability = "offline"
)

// Rider is the courier profile attached to rider users
type Rider struct {
	ID                   int64             `json:"id"`
	UserID               int64             `json:"user_id"`
	VehicleType          string            `json:"vehicle_type"`
	VehiclePlate         *string           `json:"vehicle_plate"`
	Availability         RiderAvailability `json:"availability"`
	Rating               float64           `json:"rating"`
	TotalDeliveries      int               `json:"total_deliveries"`
	SuccessfulDeliveries int               `json:"successful_deliveries"`
	WalletBalance        float64           `json:"wallet_balance"`
	IsActive             bool              `json:"is_active"`
}
