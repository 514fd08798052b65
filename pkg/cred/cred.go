// Package cred resolves user/group specifications to numeric credentials
// and applies them to the calling process in the load-bearing order the
// kernel requires. It is the CredResolver component.
package cred

import (
	"fmt"
	"os/user"
	"strconv"
)

// Resolved is a fully resolved Linux credential, packed the way TaskEnv
// carries it: Cred plus a supplementary group list.
type Resolved struct {
	UID    uint32
	GID    uint32
	Groups []uint32
}

// Resolve looks up userSpec/groupSpec (numeric id or name) the way
// /etc/passwd and /etc/nsswitch.conf would resolve them. The GID is the
// user's primary group unless groupSpec is non-empty; the user's
// supplementary groups are always included.
func Resolve(userSpec, groupSpec string) (Resolved, error) {
	var r Resolved

	u, err := lookupUser(userSpec)
	if err != nil {
		return r, fmt.Errorf("cred: resolve user %q: %w", userSpec, err)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return r, fmt.Errorf("cred: bad uid %q: %w", u.Uid, err)
	}
	r.UID = uint32(uid)

	gidStr := u.Gid
	if groupSpec != "" {
		g, err := lookupGroup(groupSpec)
		if err != nil {
			return r, fmt.Errorf("cred: resolve group %q: %w", groupSpec, err)
		}
		gidStr = g.Gid
	}
	gid, err := strconv.ParseUint(gidStr, 10, 32)
	if err != nil {
		return r, fmt.Errorf("cred: bad gid %q: %w", gidStr, err)
	}
	r.GID = uint32(gid)

	groupIDs, err := u.GroupIds()
	if err != nil {
		return r, fmt.Errorf("cred: supplementary groups for %q: %w", userSpec, err)
	}
	for _, g := range groupIDs {
		id, err := strconv.ParseUint(g, 10, 32)
		if err != nil {
			continue
		}
		r.Groups = append(r.Groups, uint32(id))
	}
	return r, nil
}

func lookupUser(spec string) (*user.User, error) {
	if u, err := user.Lookup(spec); err == nil {
		return u, nil
	}
	return user.LookupId(spec)
}

func lookupGroup(spec string) (*user.Group, error) {
	if g, err := user.LookupGroup(spec); err == nil {
		return g, nil
	}
	return user.LookupGroupId(spec)
}
