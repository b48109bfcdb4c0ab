package config

// Config represents the full runner configuration document.
type Config struct {
	Version        string          `yaml:"version" validate:"required,semver"`
	Project        string          `yaml:"project" validate:"required,min=1,max=100"`
	BaseURL        string          `yaml:"base_url,omitempty" validate:"omitempty,url"`
	AIModel        AIModel         `yaml:"ai_model,omitempty"`
	Execution      Execution       `yaml:"execution,omitempty"`
	CustomMappings []CustomMapping `yaml:"custom_mappings,omitempty" validate:"omitempty,dive"`
	Report         Report          `yaml:"report,omitempty"`
}

// AIModel configures the detection collaborator and the locator cache.
type AIModel struct {
	Type                string   `yaml:"type,omitempty" validate:"omitempty,oneof=http none"`
	Endpoint            string   `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	Timeout             int      `yaml:"timeout,omitempty" validate:"omitempty,min=1,max=300"`
	UseCache            *bool    `yaml:"use_cache,omitempty"`
	CacheTTL            int      `yaml:"cache_ttl,omitempty" validate:"omitempty,min=1"`
	CachePath           string   `yaml:"cache_path,omitempty"`
	Classes             []string `yaml:"classes,omitempty"`
}

// Execution holds scheduling, retry and browser parameters.
type Execution struct {
	Parallel          int    `yaml:"parallel,omitempty" validate:"omitempty,min=1,max=32"`
	RetryCount        int    `yaml:"retry_count,omitempty" validate:"omitempty,min=0,max=10"`
	RetryDelay        int    `yaml:"retry_delay,omitempty" validate:"omitempty,min=0,max=60000"`
	Timeout           int    `yaml:"timeout,omitempty" validate:"omitempty,min=1,max=3600"`
	ContinueOnFailure bool   `yaml:"continue_on_failure,omitempty"`
	Headless          *bool  `yaml:"headless,omitempty"`
	SlowMo            int    `yaml:"slow_mo,omitempty" validate:"omitempty,min=0,max=10000"`
	Screenshot        bool   `yaml:"screenshot,omitempty"`
	Video             bool   `yaml:"video,omitempty"`
	ScreenshotDir     string `yaml:"screenshot_dir,omitempty"`
}

// CustomMapping is a user-defined step pattern fed into the registry.
// Params values may reference capture groups with $1-style placeholders.
type CustomMapping struct {
	Pattern string            `yaml:"pattern" validate:"required"`
	Action  string            `yaml:"action" validate:"required,action_kind"`
	Params  map[string]string `yaml:"params,omitempty"`
}

// Report configures where the JSON run report is written.
type Report struct {
	Path string `yaml:"path,omitempty"`
}

// Defaults used when the document omits optional settings.
const (
	DefaultConfidenceThreshold = 0.6
	DefaultCacheTTL            = 86400
	DefaultDetectTimeout       = 30
	DefaultActionTimeout       = 30
	DefaultRetryDelay          = 500
	DefaultScreenshotDir       = "screenshots"
)

// DefaultClasses is the semantic class vocabulary submitted to the
// detection collaborator.
var DefaultClasses = []string{
	"button", "input", "link", "text", "image",
	"dropdown", "checkbox", "radio", "tab",
}

// ApplyDefaults fills unset optional fields in place.
func (c *Config) ApplyDefaults() {
	if c.AIModel.Type == "" {
		if c.AIModel.Endpoint != "" {
			c.AIModel.Type = "http"
		} else {
			c.AIModel.Type = "none"
		}
	}
	if c.AIModel.ConfidenceThreshold == 0 {
		c.AIModel.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.AIModel.Timeout == 0 {
		c.AIModel.Timeout = DefaultDetectTimeout
	}
	if c.AIModel.UseCache == nil {
		useCache := true
		c.AIModel.UseCache = &useCache
	}
	if c.AIModel.CacheTTL == 0 {
		c.AIModel.CacheTTL = DefaultCacheTTL
	}
	if len(c.AIModel.Classes) == 0 {
		c.AIModel.Classes = append([]string(nil), DefaultClasses...)
	}
	if c.Execution.Parallel == 0 {
		c.Execution.Parallel = 1
	}
	if c.Execution.Timeout == 0 {
		c.Execution.Timeout = DefaultActionTimeout
	}
	if c.Execution.RetryDelay == 0 {
		c.Execution.RetryDelay = DefaultRetryDelay
	}
	if c.Execution.Headless == nil {
		headless := true
		c.Execution.Headless = &headless
	}
	if c.Execution.ScreenshotDir == "" {
		c.Execution.ScreenshotDir = DefaultScreenshotDir
	}
}
