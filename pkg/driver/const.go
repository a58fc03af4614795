package driver

// Facing represents which way a camera points. Facing can be useful to
// filter and order devices too.
type Facing string

const (
	// FacingUser represents cameras looking at the user.
	FacingUser Facing = "user"
	// FacingEnvironment represents cameras looking away from the user.
	FacingEnvironment Facing = "environment"
	// FacingExternal represents pluggable cameras, e.g. USB webcams.
	FacingExternal Facing = "external"
	// FacingVirtualUser is a virtual camera presenting as user facing.
	FacingVirtualUser Facing = "virtual-user"
	// FacingVirtualEnvironment is a virtual camera presenting as environment facing.
	FacingVirtualEnvironment Facing = "virtual-environment"
	// FacingVirtualExternal is a virtual camera presenting as external.
	FacingVirtualExternal Facing = "virtual-external"
	// FacingUnknown is used until the facing is detected.
	FacingUnknown Facing = "unknown"
)

// IsVirtual reports whether f is one of the virtual variants.
func (f Facing) IsVirtual() bool {
	switch f {
	case FacingVirtualUser, FacingVirtualEnvironment, FacingVirtualExternal:
		return true
	}
	return false
}
