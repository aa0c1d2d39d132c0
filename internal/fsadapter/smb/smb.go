// Package smb provides an SMB/CIFS network share storage adapter.
// The SMB share must be pre-mounted on the OS (via mount.cifs or fstab).
// This adapter delegates to the local filesystem adapter at the mount path.
package smb

import (
	"encoding/json"
	"fmt"

	"github.com/shelfd/shelfd/internal/fsadapter/local"
)

// Config holds SMB adapter settings.
// Server/Username/Password/Domain are stored for admin reference and
// documentation. Actual I/O uses the MountPath where the share is pre-mounted.
type Config struct {
	Server    string `json:"server"`     // SMB server path (e.g., //server/share)
	Username  string `json:"username"`   // SMB credentials
	Password  string `json:"password"`   // SMB password
	Domain    string `json:"domain"`     // SMB domain
	MountPath string `json:"mount_path"` // Local mount point where share is mounted
}

// Adapter wraps a local adapter at the SMB mount point.
type Adapter struct {
	*local.Adapter
	config Config
}

// New creates a new SMB adapter from the given config.
func New(cfg Config) (*Adapter, error) {
	if cfg.MountPath == "" {
		return nil, fmt.Errorf("mount_path is required")
	}

	la, err := local.New(local.Config{
		RootPath:   cfg.MountPath,
		CreateDirs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("smb adapter at %s: %w", cfg.MountPath, err)
	}

	return &Adapter{
		Adapter: la,
		config:  cfg,
	}, nil
}

// NewFromJSON creates an Adapter from raw JSON config.
func NewFromJSON(raw json.RawMessage) (*Adapter, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse smb config: %w", err)
	}
	return New(cfg)
}

// Type returns "smb".
func (a *Adapter) Type() string { return "smb" }
