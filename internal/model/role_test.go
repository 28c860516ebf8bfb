package model

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		actor    Role
		required Role
		expected bool
	}{
		{RoleSuperadmin, RoleAdmin, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleLibrarian, true},
		{RoleAdmin, RoleSuperadmin, false},
		{RoleHeadLibrarian, RoleLibrarian, true},
		{RoleHeadLibrarian, RoleAdmin, false},
		{RoleLibrarian, RoleLibrarian, true},
		{RoleLibrarian, RoleMember, true},
		{RoleLibrarian, RoleHeadLibrarian, false},
		{RoleMember, RoleMember, true},
		{RoleMember, RoleLibrarian, false},
		// Unknown roles fail-closed.
		{"unknown", RoleMember, false},
		{RoleAdmin, "unknown", false},
		{"", "", false},
		{"", RoleMember, false},
	}

	for _, tt := range tests {
		got := HasPermission(tt.actor, tt.required)
		if got != tt.expected {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.actor, tt.required, got, tt.expected)
		}
	}
}

func TestRoleRanksAreTotallyOrdered(t *testing.T) {
	order := []Role{RoleMember, RoleLibrarian, RoleHeadLibrarian, RoleAdmin, RoleSuperadmin}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("expected %s to rank below %s", order[i-1], order[i])
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}
