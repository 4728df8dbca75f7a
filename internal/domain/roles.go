package domain

import "strings"

// UserRole описывает тариф пользователя.
type UserRole string

const (
	UserRoleFree      UserRole = "free"
	UserRolePremium   UserRole = "premium"
	UserRoleDeveloper UserRole = "developer"
)

// UserPlan описывает ограничения тарифа.
type UserPlan struct {
	Role        UserRole
	Name        string
	AINoWait    bool
	SourceLimit int
	DigestItems int
}

var plans = map[UserRole]UserPlan{
	UserRoleFree: {
		Role:        UserRoleFree,
		Name:        "Free",
		SourceLimit: 3,
		DigestItems: 5,
	},
	UserRolePremium: {
		Role:        UserRolePremium,
		Name:        "Premium",
		AINoWait:    true,
		SourceLimit: 10,
		DigestItems: 5,
	},
	UserRoleDeveloper: {
		Role:        UserRoleDeveloper,
		Name:        "Developer",
		AINoWait:    true,
		SourceLimit: 0,
		DigestItems: 5,
	},
}

// Valid сообщает, известна ли роль.
func (r UserRole) Valid() bool {
	_, ok := plans[r]
	return ok
}

// PlanForRole возвращает тариф для роли.
func PlanForRole(role UserRole) UserPlan {
	if plan, ok := plans[UserRole(strings.ToLower(string(role)))]; ok {
		return plan
	}
	return plans[UserRoleFree]
}

// Plan возвращает тариф пользователя.
func (u User) Plan() UserPlan {
	return PlanForRole(u.Role)
}

// BypassesAIWindow сообщает, освобождён ли пользователь от паузы между AI-запросами.
func (u User) BypassesAIWindow() bool {
	return u.Plan().AINoWait
}
