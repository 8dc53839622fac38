package config

import "github.com/lotekdan/extguard/internal/browsers"

var knownBrowserImages = []string{
	"chrome.exe", "msedge.exe", "firefox.exe", "opera.exe", "opera_browser.exe", "opera_gx.exe",
	"brave.exe", "vivaldi.exe", "waterfox.exe", "librewolf.exe", "yandex.exe", "yandexbrowser.exe",
	"maxthon.exe", "ucbrowser.exe", "safari.exe", "chromium.exe", "dragon.exe", "epic.exe", "iron.exe",
	"torch.exe", "slimjet.exe", "centbrowser.exe", "360chrome.exe", "palemoon.exe", "comet.exe",
	"duckduckgo.exe", "ddg.exe",
}

var vendorKeywords = []string{
	"chrome", "chromium", "edge", "firefox", "mozilla", "opera", "vivaldi", "brave", "yandex", "waterfox",
	"librewolf", "dragon", "epic", "iron", "torch", "slimjet", "cent", "360chrome", "palemoon", "maxthon",
	"tor", "comet", "duckduckgo", "ddg",
}

// Never swept: this agent, installers and updaters, and browser helper or
// runtime components that other applications depend on.
var defaultExcludeImages = []string{
	"extguard*", "unins*", "msedgewebview2*", "*update*", "*setup*", "*installer*",
	"*crashpad*", "*helper*", "*_proxy*", "*pwa_launcher*", "*elevation_service*", "epicgames*",
}

// Relative to each install root.
var knownInstallPaths = []string{
	`Google\Chrome\Application\chrome.exe`,
	`Microsoft\Edge\Application\msedge.exe`,
	`BraveSoftware\Brave-Browser\Application\brave.exe`,
	`Mozilla Firefox\firefox.exe`,
	`Vivaldi\Application\vivaldi.exe`,
	`Opera\opera.exe`,
	`Opera GX\opera.exe`,
	`Yandex\YandexBrowser\browser.exe`,
	`Waterfox\waterfox.exe`,
	`LibreWolf\librewolf.exe`,
	`Comodo\Dragon\dragon.exe`,
	`SRWare Iron\iron.exe`,
	`Torch\torch.exe`,
	`SlimJet\chrome.exe`,
	`CentBrowser\Application\chrome.exe`,
	`Chromium\Application\chrome.exe`,
	`Tor Browser\Browser\firefox.exe`,
	`Perplexity\Comet\Application\comet.exe`,
}

func defaultBrowsers() []BrowserConfig {
	return []BrowserConfig{
		{
			Name:         "Chrome",
			Layout:       browsers.LayoutChromium,
			WindowsImage: "chrome.exe",
			MacOSImage:   "Google Chrome",
			LinuxImage:   "chrome",
			WindowsRoots: []string{
				`%LOCALAPPDATA%\Google\Chrome\User Data`,
				`%LOCALAPPDATA%\Google\Chrome Beta\User Data`,
				`%LOCALAPPDATA%\Google\Chrome SxS\User Data`,
			},
			MacOSRoots: []string{
				"~/Library/Application Support/Google/Chrome",
				"~/Library/Application Support/Google/Chrome Beta",
				"~/Library/Application Support/Google/Chrome Canary",
			},
			LinuxRoots: []string{
				"~/.config/google-chrome",
				"~/.config/google-chrome-beta",
				"~/.config/google-chrome-unstable",
			},
		},
		{
			Name:         "Edge",
			Layout:       browsers.LayoutChromium,
			WindowsImage: "msedge.exe",
			MacOSImage:   "Microsoft Edge",
			LinuxImage:   "msedge",
			WindowsRoots: []string{
				`%LOCALAPPDATA%\Microsoft\Edge\User Data`,
				`%LOCALAPPDATA%\Microsoft\Edge Beta\User Data`,
				`%LOCALAPPDATA%\Microsoft\Edge Dev\User Data`,
				`%LOCALAPPDATA%\Microsoft\Edge SxS\User Data`,
			},
			MacOSRoots: []string{
				"~/Library/Application Support/Microsoft Edge",
				"~/Library/Application Support/Microsoft Edge Beta",
				"~/Library/Application Support/Microsoft Edge Dev",
			},
			LinuxRoots: []string{
				"~/.config/microsoft-edge",
				"~/.config/microsoft-edge-beta",
				"~/.config/microsoft-edge-dev",
			},
		},
		{
			Name:         "Brave",
			Layout:       browsers.LayoutChromium,
			WindowsImage: "brave.exe",
			MacOSImage:   "Brave Browser",
			LinuxImage:   "brave",
			WindowsRoots: []string{
				`%LOCALAPPDATA%\BraveSoftware\Brave-Browser\User Data`,
				`%LOCALAPPDATA%\BraveSoftware\Brave-Browser-Beta\User Data`,
				`%LOCALAPPDATA%\BraveSoftware\Brave-Browser-Dev\User Data`,
			},
			MacOSRoots: []string{
				"~/Library/Application Support/BraveSoftware/Brave-Browser",
				"~/Library/Application Support/BraveSoftware/Brave-Browser-Beta",
			},
			LinuxRoots: []string{
				"~/.config/BraveSoftware/Brave-Browser",
				"~/.config/BraveSoftware/Brave-Browser-Beta",
				"~/.config/BraveSoftware/Brave-Browser-Nightly",
			},
		},
		{
			Name:         "Comet",
			Layout:       browsers.LayoutChromium,
			WindowsImage: "comet.exe",
			MacOSImage:   "Comet",
			WindowsRoots: []string{
				`%LOCALAPPDATA%\Perplexity\Comet\User Data`,
			},
			MacOSRoots: []string{
				"~/Library/Application Support/Comet",
			},
		},
	}
}
