package config

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration including
// file accessibility and the sound command. The configPath argument specifies
// the config file location to validate (empty string skips config file check).
// This calls Validate() first for basic structural validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateServe(),
	)
}

// Warnings returns non-fatal issues worth surfacing from `herald config validate`.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if strings.HasPrefix(c.Server.URL, "http://") && !isLoopback(c.Server.URL) {
		warnings = append(warnings, ValidationWarning{
			Category: "server",
			Item:     "url",
			Message:  "bearer token is sent over plain http",
		})
	}

	if c.Transport.Mode == ModePoll && c.Transport.PushRetry > 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "transport",
			Item:     "push_retry",
			Message:  "ignored when mode is poll",
		})
	}

	if c.Toasts.DefaultDuration < 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "toasts",
			Item:     "default_duration",
			Message:  "negative duration keeps every toast until dismissed",
		})
	}

	if c.Connectivity.Disabled && c.Transport.PushRetry > 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "connectivity",
			Item:     "disabled",
			Message:  "push retry runs without an online check",
		})
	}

	if c.Serve.Secret == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "serve",
			Item:     "secret",
			Message:  "no secret set; herald serve and herald token require --secret",
		})
	}

	return warnings
}

func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("auth.token_file", c.Auth.TokenFile, isFileOrNotExist),
		criterio.Run("sound.command", c.Sound.Command, commandExists),
	)
}

func (c *Config) validateServe() error {
	var errs criterio.FieldErrorsBuilder

	if c.Serve.DBPath != "" {
		if err := isDirectoryOrNotExist(filepath.Dir(c.Serve.DBPath)); err != nil {
			errs = errs.Append("serve.db_path", err)
		}
	}

	for i, origin := range c.Serve.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			errs = errs.Append(fmt.Sprintf("serve.allowed_origins[%d]", i), fmt.Errorf("origin is empty"))
		}
	}

	return errs.ToError()
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// commandExists validates that the first word of a shell command resolves to
// an executable.
func commandExists(cmd string) error {
	fields := strings.Fields(cmd)
	if len(fields) == 0 || strings.Contains(fields[0], "{{") {
		return nil
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return fmt.Errorf("executable not found: %s", fields[0])
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func isFileOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	return nil
}

func isLoopback(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
