// Package models defines the persisted data model of the privilege store.
package models

import "time"

// Account is the stored record for a remote principal: the admin flag plus
// the set of privilege names the principal holds. PrincipalID is the
// external identity key and never changes after creation; DisplayName is
// synced opportunistically from inbound traffic.
type Account struct {
	ID          int64
	PrincipalID int64
	DisplayName string
	IsAdmin     bool
	Privileges  []string
	CreatedAt   time.Time
}

// HasPrivilege reports whether the account holds the named privilege.
func (a *Account) HasPrivilege(name string) bool {
	for _, p := range a.Privileges {
		if p == name {
			return true
		}
	}
	return false
}

// HasAllPrivileges reports whether the account holds every privilege in
// names. An empty set is always satisfied.
func (a *Account) HasAllPrivileges(names []string) bool {
	for _, n := range names {
		if !a.HasPrivilege(n) {
			return false
		}
	}
	return true
}

// PrivilegeGrant is one account/privilege membership row. The
// (AccountID, Privilege) pair is unique in the store.
type PrivilegeGrant struct {
	ID        int64
	AccountID int64
	Privilege string
	GrantedAt time.Time
}
