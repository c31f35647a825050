package devreload

// Version is the current version of devreload
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// ManifestFormats lists the manifest encodings understood by the loader
	ManifestFormats []string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:         Version,
		ManifestFormats: []string{"yaml", "toml"},
	}
}
