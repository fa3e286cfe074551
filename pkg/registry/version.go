package registry

import (
	"strings"
)

// File is one downloadable artifact attached to a version.
type File struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Version is one published version record. Immutable once fetched.
type Version struct {
	VersionNumber string   `json:"version_number"`
	VersionType   string   `json:"version_type"`
	GameVersions  []string `json:"game_versions"`
	Files         []File   `json:"files"`
}

// Channel normalizes the registry's version_type into the release
// maturity classification shown to users.
func (v *Version) Channel() string {
	switch strings.ToLower(v.VersionType) {
	case "beta":
		return "beta"
	case "alpha":
		return "alpha"
	default:
		return "stable"
	}
}

// ModpackVersion extracts the pack's own version out of a combined
// version_number like "1.7.2+1.20.4".
func (v *Version) ModpackVersion() string {
	num := strings.TrimSpace(v.VersionNumber)
	if num == "" {
		return "unknown"
	}

	if idx := strings.LastIndex(num, "+"); idx != -1 {
		return strings.TrimSpace(num[idx+1:])
	}

	return num
}

// ArchiveURL resolves the version's .mrpack archive, if any.
func (v *Version) ArchiveURL() (string, bool) {
	for _, f := range v.Files {
		if strings.HasSuffix(f.Filename, ".mrpack") {
			return f.URL, true
		}
	}

	return "", false
}

// DisplayName builds the folder-safe human name used for fetched packs.
func (v *Version) DisplayName(product string) string {
	name := product + " " + v.ModpackVersion()

	if len(v.GameVersions) > 0 {
		name += " [Minecraft " + strings.Join(v.GameVersions, ",") + "]"
	}

	switch v.Channel() {
	case "beta":
		name += " [Beta]"
	case "alpha":
		name += " [Alpha]"
	}

	return SanitizeName(name)
}

// SanitizeName strips characters that are unsafe in folder names.
func SanitizeName(name string) string {
	var b strings.Builder

	for _, c := range name {
		if strings.ContainsRune(`<>:"/\|?*`, c) {
			continue
		}

		b.WriteRune(c)
	}

	return strings.TrimSpace(b.String())
}
