package domain

// Role — роль аутентифицированного пользователя.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Principal — вызывающий пользователь, передаётся в каждую операцию явно.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin сообщает, обладает ли пользователь административной ролью.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanAccess разрешает доступ владельцу заказа и администратору.
func (p Principal) CanAccess(order Order) bool {
	return p.UserID != "" && (p.IsAdmin() || order.OwnedBy(p.UserID))
}
