package autostart

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRegistersOnce(t *testing.T) {
	m := NewMemory()
	cmd := Command(`C:\Tools\extguard-monitor.exe`)
	assert.Equal(t, `"C:\Tools\extguard-monitor.exe" --background`, cmd)

	changed, err := Ensure(m, "ExtensionGuardian", cmd)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = Ensure(m, "ExtensionGuardian", cmd)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, m.Writes())
}

func TestEnsureRepairsRemovedOrChangedEntry(t *testing.T) {
	m := NewMemory()
	_, err := Ensure(m, "ExtensionGuardian", "a --background")
	require.NoError(t, err)

	m.Delete("ExtensionGuardian")
	changed, err := Ensure(m, "ExtensionGuardian", "a --background")
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, m.Register("ExtensionGuardian", "tampered"))
	changed, err = Ensure(m, "ExtensionGuardian", "a --background")
	require.NoError(t, err)
	assert.True(t, changed)

	v, ok, _ := m.Lookup("ExtensionGuardian")
	assert.True(t, ok)
	assert.Equal(t, "a --background", v)
}

func TestEnsureReturnsRegistrationError(t *testing.T) {
	m := NewMemory()
	m.FailWith(errors.New("access denied"))

	_, err := Ensure(m, "ExtensionGuardian", "x")
	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "ExtensionGuardian", regErr.Name)
}

func TestXDG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "autostart")
	x := NewXDG(dir)

	_, ok, err := x.Lookup("extguard")
	require.NoError(t, err)
	assert.False(t, ok)

	changed, err := Ensure(x, "extguard", Command("/usr/local/bin/extguard-monitor"))
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(filepath.Join(dir, "extguard.desktop"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `Exec="/usr/local/bin/extguard-monitor" --background`)

	changed, err = Ensure(x, "extguard", Command("/usr/local/bin/extguard-monitor"))
	require.NoError(t, err)
	assert.False(t, changed)
}
