package domain

type UserRole string

const (
	UserRoleCustomer UserRole = "CUSTOMER"
	UserRoleCourier  UserRole = "COURIER"
	UserRoleOperator UserRole = "OPERATOR"
	UserRoleAdmin    UserRole = "ADMIN"
)

// Elevated reports whether the role may force status overrides, such as
// cancelling an order from any non-terminal state.
func (r UserRole) Elevated() bool {
	return r == UserRoleOperator || r == UserRoleAdmin
}

type User struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	Role              UserRole `json:"role"`
	Active            bool     `json:"active"`
	LoyaltyBalance    int64    `json:"loyalty_balance_cents"` // smallest currency unit, never negative
	Language          string   `json:"language"`
	GatewayCustomerID string   `json:"gateway_customer_id"`
	BoxID             *int64   `json:"box_id,omitempty"` // current assigned location
	CreatedOn         string   `json:"created_on"`
	UpdatedOn         string   `json:"updated_on"`
}
