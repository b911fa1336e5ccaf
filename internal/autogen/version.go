package autogen

import "strconv"

// Version is the resolved major/minor toolchain version. The components stay
// strings because project definitions may carry non-numeric values; those
// simply fail AtLeast checks instead of erroring.
type Version struct {
	Major string
	Minor string
}

// ResolveVersion determines the toolchain version for a target. A version
// pinned on the target always wins over project wide definitions.
func ResolveVersion(store Store, t Target) Version {
	qt := t.Qt()

	major := store.Definition("QT_VERSION_MAJOR")
	if major == "" {
		major = store.Definition("Qt5Core_VERSION_MAJOR")
	}
	if qt.VersionMajor != "" {
		major = qt.VersionMajor
	}

	var minor string
	if major == "5" {
		minor = store.Definition("Qt5Core_VERSION_MINOR")
	}
	if minor == "" {
		minor = store.Definition("QT_VERSION_MINOR")
	}
	if qt.VersionMinor != "" {
		minor = qt.VersionMinor
	}

	return Version{Major: major, Minor: minor}
}

// AtLeast reports whether major.minor satisfies reqMajor.reqMinor.
// Non-numeric version strings never satisfy a requirement.
func AtLeast(major, minor string, reqMajor, reqMinor uint64) bool {
	maj, err := strconv.ParseUint(major, 10, 64)
	if err != nil {
		return false
	}
	min, err := strconv.ParseUint(minor, 10, 64)
	if err != nil {
		return false
	}
	return maj > reqMajor || (maj == reqMajor && min >= reqMinor)
}

// AtLeast reports whether v satisfies reqMajor.reqMinor.
func (v Version) AtLeast(reqMajor, reqMinor uint64) bool {
	return AtLeast(v.Major, v.Minor, reqMajor, reqMinor)
}
