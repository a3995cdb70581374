package domain

// Permission is a platform capability bit set.
type Permission uint64

const (
	PermissionStream                  Permission = 1 << 9
	PermissionViewChannel             Permission = 1 << 10
	PermissionSendMessages            Permission = 1 << 11
	PermissionConnect                 Permission = 1 << 20
	PermissionStartEmbeddedActivities Permission = 1 << 39
	PermissionUseSoundboard           Permission = 1 << 42
)

// Has reports whether every bit of other is set in p.
func (p Permission) Has(other Permission) bool {
	return p&other == other
}

// OverwriteType tells whether an overwrite targets a role or a member.
type OverwriteType int

const (
	OverwriteRole OverwriteType = iota
	OverwriteMember
)

func (t OverwriteType) String() string {
	if t == OverwriteMember {
		return "member"
	}
	return "role"
}

// Overwrite is a per-target permission grant/deny applied to a room.
type Overwrite struct {
	TargetID uint64        `json:"id,string"`
	Type     OverwriteType `json:"type"`
	Allow    Permission    `json:"allow"`
	Deny     Permission    `json:"deny"`
}

// RoleOverwrite returns an empty overwrite targeting a role.
func RoleOverwrite(id RoleID) Overwrite {
	return Overwrite{TargetID: uint64(id), Type: OverwriteRole}
}

// MemberOverwrite returns an empty overwrite targeting a member.
func MemberOverwrite(id MemberID) Overwrite {
	return Overwrite{TargetID: uint64(id), Type: OverwriteMember}
}

// AddAllows grants perms and clears them from the deny set.
func (o *Overwrite) AddAllows(perms Permission) {
	o.Allow |= perms
	o.Deny &^= perms
}

// AddDenies denies perms and clears them from the allow set.
func (o *Overwrite) AddDenies(perms Permission) {
	o.Deny |= perms
	o.Allow &^= perms
}
