package features

// Stage is the lifecycle bucket of a feature flag.
type Stage string

const (
	StageStable       Stage = "stable"
	StageBeta         Stage = "beta"
	StageExperimental Stage = "experimental"
	StageDeprecated   Stage = "deprecated"
)

const (
	Haptics        = "haptics"
	HistoryPersist = "history_persist"
	LivePreview    = "live_preview"
	Clipboard      = "clipboard"
	FuzzyHistory   = "fuzzy_history"
)

// Spec describes a feature flag exposed by the CLI.
type Spec struct {
	Key            string
	Stage          Stage
	DefaultEnabled bool
}

var Specs = []Spec{
	{Key: Haptics, Stage: StageStable, DefaultEnabled: true},
	{Key: HistoryPersist, Stage: StageStable, DefaultEnabled: true},
	{Key: LivePreview, Stage: StageBeta, DefaultEnabled: true},
	{Key: Clipboard, Stage: StageStable, DefaultEnabled: true},
	{Key: FuzzyHistory, Stage: StageExperimental, DefaultEnabled: false},
}

var known = func() map[string]Spec {
	m := make(map[string]Spec, len(Specs))
	for _, spec := range Specs {
		m[spec.Key] = spec
	}
	return m
}()

// IsKnown reports whether the feature key is recognized.
func IsKnown(key string) bool {
	_, ok := known[key]
	return ok
}

// StageFor returns the lifecycle stage for a feature, defaulting to experimental.
func StageFor(key string) Stage {
	if spec, ok := known[key]; ok {
		return spec.Stage
	}
	return StageExperimental
}

// DefaultEnabled reports the default value for the given feature key.
func DefaultEnabled(key string) bool {
	if spec, ok := known[key]; ok {
		return spec.DefaultEnabled
	}
	return false
}

// Enabled resolves key against explicit overrides, falling back to the default.
func Enabled(overrides map[string]bool, key string) bool {
	if v, ok := overrides[key]; ok {
		return v
	}
	return DefaultEnabled(key)
}
