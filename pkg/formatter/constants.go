package formatter

// Defaults used by the configuration layer when nothing else is set.
const (
	DefaultMode            = ModePrint
	DefaultConcurrency     = 0 // runtime.NumCPU()
	DefaultCacheEnabled    = true
	DefaultTuiEnabled      = false
	DefaultOnErrorMode     = OnErrorContinue
	DefaultOutputFormat    = OutputFormatText
	DefaultUseGitignore    = true
	DefaultMaxFileSizeMB   = 10
	DefaultGitSinceRef     = "main"
	DefaultFormatTimeout   = "30s"
	DefaultPrettierCommand = "prettier"
)

// DefaultExtensions are the file suffixes picked up when walking a directory.
var DefaultExtensions = []string{".blade.php"}

// DefaultIgnorePatterns are always added to the user's ignore patterns.
var DefaultIgnorePatterns = []string{".git/", "node_modules/", "vendor/"}

// File names looked up in the working directory.
const (
	CacheFileName  = ".blade-formatter.cache"
	IgnoreFileName = ".bladeformatterignore"
	GitignoreName  = ".gitignore"
)

// ReportSchemaVersion is the version of the JSON/YAML report layout.
const ReportSchemaVersion = "1.0"

// Cache status values used in FileInfo.
const (
	CacheStatusHit      = "hit"
	CacheStatusMiss     = "miss"
	CacheStatusDisabled = "disabled"
)

// Skip reasons used in SkippedInfo.
const (
	SkipReasonBinary   = "binary_file"
	SkipReasonLarge    = "large_file"
	SkipReasonLanguage = "not_a_template"
	SkipReasonEmpty    = "empty_file"
)
