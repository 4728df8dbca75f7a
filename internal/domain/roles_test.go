package domain

import "testing"

func TestPlanForRole(t *testing.T) {
	tests := []struct {
		name string
		role UserRole
		want UserRole
	}{
		{name: "free", role: UserRoleFree, want: UserRoleFree},
		{name: "premium", role: UserRolePremium, want: UserRolePremium},
		{name: "developer", role: UserRoleDeveloper, want: UserRoleDeveloper},
		{name: "unknown falls back to free", role: UserRole("gold"), want: UserRoleFree},
		{name: "case insensitive", role: UserRole("Premium"), want: UserRolePremium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlanForRole(tt.role); got.Role != tt.want {
				t.Fatalf("PlanForRole(%v) = %v, want %v", tt.role, got.Role, tt.want)
			}
		})
	}
}

func TestBypassesAIWindow(t *testing.T) {
	free := User{Role: UserRoleFree}
	if free.BypassesAIWindow() {
		t.Fatalf("тариф free не должен обходить паузу AI")
	}
	premium := User{Role: UserRolePremium}
	if !premium.BypassesAIWindow() {
		t.Fatalf("тариф premium должен обходить паузу AI")
	}
}
