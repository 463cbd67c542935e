// Package shelf holds module-wide constants.
package shelf

// Version is the release version of the shelf module and CLI.
const Version = "0.1.0"

// ModulePath is the Go module path.
const ModulePath = "github.com/mesh-intelligence/shelf"
