// Package appid holds the application identity used for logging namespaces,
// telemetry, the version endpoint and CLI help text.
package appid

import (
	"context"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
)

const (
	vendor      = "solvedrelay"
	binaryName  = "solvedrelay"
	configName  = "solvedrelay"
	envPrefix   = "SOLVEDRELAY_"
	description = "CORS-friendly relay for GeeksforGeeks solved-problem history"
)

// EnvBinaryName overrides the reported binary name (useful when the relay is
// deployed under a different service name).
const EnvBinaryName = "SOLVEDRELAY_BINARY_NAME"

// Get returns the identity of the running relay. The context is accepted for
// parity with gofulmen identity loaders and is not otherwise used.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	_ = ctx

	name := binaryName
	if override := strings.TrimSpace(os.Getenv(EnvBinaryName)); override != "" {
		name = override
	}

	return &appidentity.Identity{
		Vendor:      vendor,
		BinaryName:  name,
		ConfigName:  configName,
		EnvPrefix:   envPrefix,
		Description: description,
	}, nil
}
