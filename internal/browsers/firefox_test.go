package browsers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firefoxID = "guardian@example.org"

func firefoxRoot(t *testing.T, addons string, prefs string) (string, string) {
	t.Helper()
	root := t.TempDir()
	profile := filepath.Join(root, "Profiles", "abcd.default-release")
	require.NoError(t, os.MkdirAll(profile, 0755))
	ini := "[Profile0]\nName=default-release\nIsRelative=1\nPath=Profiles/abcd.default-release\nDefault=1\n\n[General]\nVersion=2\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "profiles.ini"), []byte(ini), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(profile, "extensions.json"), []byte(addons), 0644))
	if prefs != "" {
		require.NoError(t, os.WriteFile(filepath.Join(profile, "extension-preferences.json"), []byte(prefs), 0644))
	}
	return root, profile
}

func TestFirefoxProfileDirs(t *testing.T) {
	root, profile := firefoxRoot(t, `{"addons":[]}`, "")

	dirs, err := ProfileDirs(root, LayoutFirefox)
	require.NoError(t, err)
	assert.Equal(t, []string{profile}, dirs)
}

func TestReadFirefoxProfile(t *testing.T) {
	addons := `{"addons":[{"id":"guardian@example.org","active":true,"userDisabled":false}]}`
	prefs := `{"guardian@example.org":{"permissions":["internal:privateBrowsingAllowed"],"origins":[]}}`
	_, profile := firefoxRoot(t, addons, prefs)

	record, err := ReadFirefoxProfile(profile, firefoxID)
	require.NoError(t, err)
	assert.False(t, record.Disabled())
	assert.True(t, record.IncognitoAllowed)

	_, err = ReadFirefoxProfile(profile, "missing@example.org")
	assert.ErrorIs(t, err, ErrNotPresent)
}

func TestReadFirefoxProfileDisabled(t *testing.T) {
	addons := `{"addons":[{"id":"guardian@example.org","active":false,"userDisabled":true}]}`
	prefs := `{"guardian@example.org":{"permissions":["internal:privateBrowsingAllowed"]}}`
	root, _ := firefoxRoot(t, addons, prefs)

	def := Definition{Name: "Firefox", Image: "firefox.exe", Layout: LayoutFirefox, Roots: []string{root}}
	scan := NewScanner(firefoxID, nil).Scan(def)
	assert.Equal(t, VerdictDisabled, scan.Verdict)
	assert.Contains(t, scan.Reason, "state=0")
}

func TestReadFirefoxProfileWithoutPrivateBrowsing(t *testing.T) {
	addons := `{"addons":[{"id":"guardian@example.org","active":true}]}`
	_, profile := firefoxRoot(t, addons, "")

	record, err := ReadFirefoxProfile(profile, firefoxID)
	require.NoError(t, err)
	assert.False(t, record.IncognitoAllowed)
	assert.True(t, record.Disabled())
}

func TestReadFirefoxProfileMalformed(t *testing.T) {
	_, profile := firefoxRoot(t, `{"addons":`, "")

	_, err := ReadFirefoxProfile(profile, firefoxID)
	var readErr *ReadError
	assert.ErrorAs(t, err, &readErr)
}
