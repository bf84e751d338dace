package models

import "testing"

func TestAccount_HasPrivilege(t *testing.T) {
	a := &Account{Privileges: []string{"reports", "manage_users"}}

	if !a.HasPrivilege("reports") {
		t.Fatalf("expected account to hold 'reports'")
	}
	if a.HasPrivilege("deploy") {
		t.Fatalf("account must not hold 'deploy'")
	}
}

func TestAccount_HasAllPrivileges(t *testing.T) {
	a := &Account{Privileges: []string{"a"}}

	tests := []struct {
		name     string
		required []string
		want     bool
	}{
		{"empty set always satisfied", nil, true},
		{"subset held", []string{"a"}, true},
		{"missing one", []string{"a", "b"}, false},
		{"missing all", []string{"b"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.HasAllPrivileges(tc.required); got != tc.want {
				t.Fatalf("HasAllPrivileges(%v) = %v, want %v", tc.required, got, tc.want)
			}
		})
	}
}
