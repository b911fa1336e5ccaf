package autogen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveVersion(t *testing.T) {
	store := &fakeStore{defs: map[string]string{}}
	tgt := &fakeTarget{name: "app"}

	// nothing known
	assert.Equal(t, Version{}, ResolveVersion(store, tgt))

	// the namespaced definition is the fallback for the major version
	store.defs["Qt5Core_VERSION_MAJOR"] = "5"
	store.defs["Qt5Core_VERSION_MINOR"] = "9"
	assert.Equal(t, Version{Major: "5", Minor: "9"}, ResolveVersion(store, tgt))

	// the generic definition wins over the namespaced one
	store.defs["QT_VERSION_MAJOR"] = "4"
	store.defs["QT_VERSION_MINOR"] = "8"
	assert.Equal(t, Version{Major: "4", Minor: "8"}, ResolveVersion(store, tgt))

	// for Qt 5 the namespaced minor is preferred
	store.defs["QT_VERSION_MAJOR"] = "5"
	assert.Equal(t, Version{Major: "5", Minor: "9"}, ResolveVersion(store, tgt))

	// a target pin beats everything
	tgt.qt.VersionMajor = "4"
	tgt.qt.VersionMinor = "7"
	assert.Equal(t, Version{Major: "4", Minor: "7"}, ResolveVersion(store, tgt))
}

func TestVersionAtLeast(t *testing.T) {
	assert.True(t, AtLeast("5", "8", 5, 8))
	assert.True(t, AtLeast("5", "9", 5, 8))
	assert.True(t, AtLeast("6", "0", 5, 8))
	assert.False(t, AtLeast("5", "7", 5, 8))
	assert.False(t, AtLeast("4", "8", 5, 0))

	// non-numeric components never satisfy a requirement
	assert.False(t, AtLeast("abc", "8", 5, 8))
	assert.False(t, AtLeast("5", "", 5, 0))
	assert.False(t, AtLeast("", "", 0, 0))

	assert.True(t, Version{Major: "5", Minor: "8"}.AtLeast(5, 8))
	assert.False(t, Version{Major: "5", Minor: "7"}.AtLeast(5, 8))
}
