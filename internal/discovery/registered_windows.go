//go:build windows

package discovery

import (
	"errors"

	"golang.org/x/sys/windows/registry"
)

const startMenuInternet = `SOFTWARE\Clients\StartMenuInternet`

// RegisteredBrowsers reads the open command of every StartMenuInternet
// client under HKLM and HKCU.
func RegisteredBrowsers() ([]string, error) {
	var exes []string
	var errs []error
	for _, hive := range []registry.Key{registry.LOCAL_MACHINE, registry.CURRENT_USER} {
		k, err := registry.OpenKey(hive, startMenuInternet, registry.ENUMERATE_SUB_KEYS)
		if errors.Is(err, registry.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		subs, err := k.ReadSubKeyNames(-1)
		k.Close()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, sub := range subs {
			cmdKey, err := registry.OpenKey(hive, startMenuInternet+`\`+sub+`\shell\open\command`, registry.QUERY_VALUE)
			if err != nil {
				continue
			}
			cmd, _, err := cmdKey.GetStringValue("")
			cmdKey.Close()
			if err != nil {
				continue
			}
			if exe := ExtractExe(cmd); exe != "" {
				exes = append(exes, exe)
			}
		}
	}
	return exes, errors.Join(errs...)
}
