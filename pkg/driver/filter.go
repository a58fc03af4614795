package driver

// FilterFn is being used to decide if a device should be included in the
// query result.
type FilterFn func(DeviceInfo) bool

// Query returns the devices of ds that pass filter, keeping their order.
func Query(ds []DeviceInfo, filter FilterFn) []DeviceInfo {
	results := make([]DeviceInfo, 0, len(ds))
	for _, d := range ds {
		if filter(d) {
			results = append(results, d)
		}
	}
	return results
}

// FilterID returns a filter function to query devices by their ID.
func FilterID(id string) FilterFn {
	return func(d DeviceInfo) bool {
		return d.ID == id
	}
}

// FilterFacing returns a filter function to query devices by facing.
func FilterFacing(f Facing) FilterFn {
	return func(d DeviceInfo) bool {
		return d.Facing == f
	}
}

// FilterCapable selects devices that expose at least one resolution.
func FilterCapable() FilterFn {
	return func(d DeviceInfo) bool {
		return d.HasCapability()
	}
}

// FilterNot returns a filter function to query devices that does not match
// the given filter.
func FilterNot(filter FilterFn) FilterFn {
	return func(d DeviceInfo) bool {
		return !filter(d)
	}
}

// FilterAnd returns a filter function to query devices that match all the
// given filters.
func FilterAnd(filters ...FilterFn) FilterFn {
	return func(d DeviceInfo) bool {
		for _, filter := range filters {
			if !filter(d) {
				return false
			}
		}
		return true
	}
}
