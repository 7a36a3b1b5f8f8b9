// Package brand provides centralized branding constants for the tool.
// This makes it easy to fork or white-label the product by changing brand.json.
//
// The brand identity is loaded from brand.json at compile time via go:embed.
// This allows other tools (scripts, docs generators) to read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name                  string `json:"name"`
	LowerName             string `json:"lowerName"`
	Vendor                string `json:"vendor"`
	Description           string `json:"description"`
	ConfigEnvPrefix       string `json:"configEnvPrefix"`
	BinaryName            string `json:"binaryName"`
	ConfigFileName        string `json:"configFileName"`
	DefaultBackupDirName  string `json:"defaultBackupDirName"`
	FirewallRulePrefix    string `json:"firewallRulePrefix"`
	MaintenanceScriptPath string `json:"maintenanceScriptPath"`
	Copyright             string `json:"copyright"`
	License               string `json:"license"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Vendor = b.Vendor
	Description = b.Description
	ConfigEnvPrefix = b.ConfigEnvPrefix
	BinaryName = b.BinaryName
	ConfigFileName = b.ConfigFileName
	DefaultBackupDirName = b.DefaultBackupDirName
	FirewallRulePrefix = b.FirewallRulePrefix
	MaintenanceScriptPath = b.MaintenanceScriptPath
	Copyright = b.Copyright
	License = b.License
}

// Exported variables for convenience
var (
	Name                  string
	LowerName             string
	Vendor                string
	Description           string
	ConfigEnvPrefix       string
	BinaryName            string
	ConfigFileName        string
	DefaultBackupDirName  string
	FirewallRulePrefix    string
	MaintenanceScriptPath string
	Copyright             string
	License               string

	// Version is set at build time via -ldflags
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// DefaultBackupRoot returns the backup root, checking env vars first.
// Priority: WSLHARDEN_BACKUP_ROOT > %LOCALAPPDATA%\wslharden-backups > home fallback.
func DefaultBackupRoot() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_BACKUP_ROOT"); dir != "" {
		return dir
	}
	if base := os.Getenv("LOCALAPPDATA"); base != "" {
		return filepath.Join(base, DefaultBackupDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultBackupDirName
	}
	return filepath.Join(home, DefaultBackupDirName)
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	if path := os.Getenv(ConfigEnvPrefix + "_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ConfigFileName
	}
	return filepath.Join(home, "."+LowerName, ConfigFileName)
}
