// Package shelf holds build metadata for the shelf module.
package shelf

// Version is the release version reported by shelf version.
const Version = "0.1.0"

// ModulePath is the Go module path.
const ModulePath = "github.com/mesh-intelligence/shelf"
