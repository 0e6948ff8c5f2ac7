// Package rolediff reconciles a role's desired permission list against its
// current permission set. The output is always a complete enumeration of the
// permissions the role will hold after approval, never a sparse diff.
package rolediff

import "github.com/google/uuid"

type Action string

const (
	ActionCreate    Action = "create"
	ActionDelete    Action = "delete"
	ActionUnchanged Action = "unchanged"
)

// Incoming is one desired permission, optionally tagged with an action hint.
// Only a delete hint is honored; everything else is inferred from current
// state.
type Incoming struct {
	PermissionID uuid.UUID
	Action       Action
}

// Current is one live role-permission row.
type Current struct {
	RolePermissionID uuid.UUID
	PermissionID     uuid.UUID
}

// Entry is one reconciled permission change.
type Entry struct {
	PermissionID             uuid.UUID
	Action                   Action
	OriginalRolePermissionID *uuid.UUID
}

// Reconcile runs the two-pass reconciliation:
//
//  1. Each incoming permission resolves against current state: a delete hint
//     on a permission the role does not hold is dropped silently; a delete
//     hint on a held permission becomes a delete; a permission not held
//     becomes a create regardless of hint; a held permission stays unchanged.
//  2. Every currently-held permission absent from the incoming list is
//     carried over as unchanged, keeping the enumeration complete.
func Reconcile(current []Current, incoming []Incoming) []Entry {
	held := make(map[uuid.UUID]Current, len(current))
	for _, c := range current {
		held[c.PermissionID] = c
	}

	seen := make(map[uuid.UUID]bool, len(incoming))
	entries := make([]Entry, 0, len(current)+len(incoming))

	for _, in := range incoming {
		if seen[in.PermissionID] {
			continue
		}
		seen[in.PermissionID] = true

		cur, ok := held[in.PermissionID]
		switch {
		case in.Action == ActionDelete && !ok:
			// nothing to delete
		case in.Action == ActionDelete:
			entries = append(entries, Entry{
				PermissionID:             in.PermissionID,
				Action:                   ActionDelete,
				OriginalRolePermissionID: ref(cur.RolePermissionID),
			})
		case !ok:
			entries = append(entries, Entry{
				PermissionID: in.PermissionID,
				Action:       ActionCreate,
			})
		default:
			entries = append(entries, Entry{
				PermissionID:             in.PermissionID,
				Action:                   ActionUnchanged,
				OriginalRolePermissionID: ref(cur.RolePermissionID),
			})
		}
	}

	for _, c := range current {
		if seen[c.PermissionID] {
			continue
		}
		entries = append(entries, Entry{
			PermissionID:             c.PermissionID,
			Action:                   ActionUnchanged,
			OriginalRolePermissionID: ref(c.RolePermissionID),
		})
	}

	return entries
}

func ref(id uuid.UUID) *uuid.UUID {
	return &id
}
