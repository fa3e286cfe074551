package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/shirou/gopsutil/v3/host"
)

type Config struct {
	path      string
	configDir string

	// Actual Config
	RegistryURL  string `json:"registry-url"`
	InstallerURL string `json:"installer-url"`
	MinecraftDir string `json:"minecraft-dir"`
	DownloadsDir string `json:"downloads-dir"`
	LogDir       string `json:"log-dir"`
	JavaPath     string `json:"java-path"`
}

const (
	DefaultConfigPath = "~/.config/packmule/config.json"

	DefaultRegistryURL = "https://api.modrinth.com/v2/project/optifine-for-fabric/version"

	fabricInstallerVersion = "0.11.2"

	DefaultInstallerURL = "https://maven.fabricmc.net/net/fabricmc/fabric-installer/" +
		fabricInstallerVersion + "/fabric-installer-" + fabricInstallerVersion + ".jar"

	DefaultMinecraftDir = "~/.minecraft"
	DefaultDownloadsDir = "~/Downloads"
	DefaultLogDir       = "~/packmule-logs"
)

func LoadConfig() (*Config, error) {
	if loc := os.Getenv("PACKMULE_CONFIG"); loc != "" {
		return loadFile(loc)
	}

	path, err := homedir.Expand(DefaultConfigPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		return loadFile(path)
	}

	cfg := &Config{
		path:      path,
		configDir: filepath.Dir(path),
	}

	return applyDefaults(cfg)
}

func loadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	var cfg Config

	err = json.NewDecoder(f).Decode(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.path = path
	cfg.configDir = filepath.Dir(path)

	return applyDefaults(&cfg)
}

func applyDefaults(cfg *Config) (*Config, error) {
	if url := os.Getenv("PACKMULE_REGISTRY_URL"); url != "" {
		cfg.RegistryURL = url
	}

	if url := os.Getenv("PACKMULE_INSTALLER_URL"); url != "" {
		cfg.InstallerURL = url
	}

	if dir := os.Getenv("PACKMULE_MINECRAFT_DIR"); dir != "" {
		cfg.MinecraftDir = dir
	}

	if cfg.RegistryURL == "" {
		cfg.RegistryURL = DefaultRegistryURL
	}

	if cfg.InstallerURL == "" {
		cfg.InstallerURL = DefaultInstallerURL
	}

	for _, f := range []struct {
		field *string
		def   string
	}{
		{&cfg.MinecraftDir, DefaultMinecraftDir},
		{&cfg.DownloadsDir, DefaultDownloadsDir},
		{&cfg.LogDir, DefaultLogDir},
	} {
		if *f.field == "" {
			*f.field = f.def
		}

		expanded, err := homedir.Expand(*f.field)
		if err != nil {
			return nil, err
		}

		*f.field = expanded
	}

	return cfg, nil
}

func (c *Config) ConfigDir() string {
	return c.configDir
}

// HostSummary describes the host for the session log header.
func (c *Config) HostSummary() string {
	info, err := host.Info()
	if err != nil {
		return "unknown host"
	}

	return fmt.Sprintf("%s %s (%s)", info.Platform, info.PlatformVersion, info.KernelArch)
}
