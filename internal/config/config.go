// Package config loads hosts.conf, the repository's server-connection
// registry, and validates it against the permission and naming bounds
// spec §6/§7 require.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/pgpierr"
)

// MaxHostsConfMode is the permission ceiling hosts.conf must not exceed,
// since it may carry plaintext passwords (spec §7 PermissionsTooLoose).
const MaxHostsConfMode = 0o640

var serverIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ServerConfig is one [serverId] section of hosts.conf.
type ServerConfig struct {
	ServerID      string `mapstructure:"server_id"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	InputPassword bool   `mapstructure:"input_password"`
	Password      string `mapstructure:"password"`
}

// Validate checks the fields load_hosts_conf cannot verify on its own:
// serverId shape and a usable port.
func (c ServerConfig) Validate() error {
	if !serverIDPattern.MatchString(c.ServerID) {
		return pgpierr.New(pgpierr.ConfigInvalid,
			fmt.Sprintf("serverId %q must match %s", c.ServerID, serverIDPattern.String()))
	}
	if c.Host == "" {
		return pgpierr.New(pgpierr.ConfigInvalid, fmt.Sprintf("server %q: host is required", c.ServerID))
	}
	if c.Port <= 0 || c.Port > 65535 {
		return pgpierr.New(pgpierr.ConfigInvalid, fmt.Sprintf("server %q: port %d out of range", c.ServerID, c.Port))
	}
	return nil
}

// RepositoryConfig is the resolved view of a repository directory's
// hosts.conf: every registered server plus the path it was read from.
type RepositoryConfig struct {
	Path    string
	Servers []ServerConfig
}

// ByServerID looks up one server by its section name.
func (r RepositoryConfig) ByServerID(serverID string) (ServerConfig, bool) {
	for _, s := range r.Servers {
		if s.ServerID == serverID {
			return s, true
		}
	}
	return ServerConfig{}, false
}

// LoadHostsConf parses path as an INI file of [serverId] sections and
// validates both the file's permission bits and every section's fields.
// A missing file is reported as ConfigInvalid, not a bare os error.
func LoadHostsConf(path string) (*RepositoryConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, pgpierr.Wrap(pgpierr.ConfigInvalid, "hosts.conf not found", err)
	}
	if info.Mode().Perm()&^MaxHostsConfMode != 0 {
		return nil, pgpierr.New(pgpierr.PermissionsTooLoose,
			fmt.Sprintf("hosts.conf mode %s exceeds %s", info.Mode().Perm(), os.FileMode(MaxHostsConfMode)))
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return nil, pgpierr.Wrap(pgpierr.ConfigInvalid, "parsing hosts.conf", err)
	}

	out := &RepositoryConfig{Path: path}
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		port, _ := strconv.Atoi(section.Key("port").String())
		sc := ServerConfig{
			ServerID:      section.Name(),
			Host:          section.Key("host").String(),
			Port:          port,
			Username:      section.Key("username").String(),
			InputPassword: section.Key("input_password").MustBool(false),
			Password:      section.Key("password").String(),
		}
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		out.Servers = append(out.Servers, sc)
	}
	return out, nil
}

// ConnectionString builds a libpq keyword/value connection string for
// server against database, mirroring the two password-sourcing modes
// hosts.conf supports: a stored password, or a prompt the caller performs
// when InputPassword is set (that prompt lives in cmd/pgpi, not here).
func (c ServerConfig) ConnectionString(database, password string) string {
	conn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s", c.Host, c.Port, database, c.Username)
	if password != "" {
		conn += " password=" + password
	}
	return conn
}
