package types

// Options is the user's conversion configuration.
type Options struct {
	Targets []string `json:"targets"`
}

// Clone returns a copy whose Targets slice can be modified independently.
func (o Options) Clone() Options {
	return Options{Targets: append([]string(nil), o.Targets...)}
}

// SiteState maps a normalized hostname to its enabled flag. A missing host is disabled.
type SiteState map[string]bool
