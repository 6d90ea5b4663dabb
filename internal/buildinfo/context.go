// Package buildinfo contains build-time metadata kept separate from user configuration
package buildinfo

// UnknownValue is reported for metadata the build did not provide
const UnknownValue = "unknown"

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	// GetVersion returns the build version string
	GetVersion() string
	// GetBuildDate returns the build date string
	GetBuildDate() string
	// GetSystemID returns the instance identifier
	GetSystemID() string
	// UserAgent returns the product token sent to external services
	UserAgent() string
}

// Context contains build-time metadata that is not user-configurable.
// It is injected at startup by main.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// SystemID identifies this instance in telemetry and notifications
	SystemID string
}

// NewContext creates a build context
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{Version: version, BuildDate: buildDate, SystemID: systemID}
}

// GetVersion implements BuildInfo.GetVersion
func (c *Context) GetVersion() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Version)
}

// GetBuildDate implements BuildInfo.GetBuildDate
func (c *Context) GetBuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.BuildDate)
}

// GetSystemID implements BuildInfo.GetSystemID
func (c *Context) GetSystemID() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.SystemID)
}

// UserAgent implements BuildInfo.UserAgent
func (c *Context) UserAgent() string {
	return "naskban/" + c.GetVersion()
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}
