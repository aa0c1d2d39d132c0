// Package registry instantiates storage adapters from stored configuration
// and resolves the adapter bound to each user.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shelfd/shelfd/internal/fsadapter"
	"github.com/shelfd/shelfd/internal/fsadapter/local"
	s3adapter "github.com/shelfd/shelfd/internal/fsadapter/s3"
	"github.com/shelfd/shelfd/internal/fsadapter/smb"
)

// NewAdapterFromConfig creates an Adapter from a backend type string and JSON
// config.
func NewAdapterFromConfig(ctx context.Context, backendType string, config json.RawMessage) (fsadapter.Adapter, error) {
	switch backendType {
	case "s3":
		return s3adapter.NewFromJSON(ctx, config)
	case "local":
		return local.NewFromJSON(config)
	case "smb":
		return smb.NewFromJSON(config)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", backendType)
	}
}
