package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Telegram
	out.Telegram = cfg.Telegram
	redact(&out.Telegram.Token)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Telegram.AllowedUsers != nil {
		out.Telegram.AllowedUsers = make([]int64, len(cfg.Telegram.AllowedUsers))
		copy(out.Telegram.AllowedUsers, cfg.Telegram.AllowedUsers)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Analysis.ExcludedAssets != nil {
		out.Analysis.ExcludedAssets = make([]string, len(cfg.Analysis.ExcludedAssets))
		copy(out.Analysis.ExcludedAssets, cfg.Analysis.ExcludedAssets)
	}
	if cfg.Analysis.DepthOptions != nil {
		out.Analysis.DepthOptions = make([]float64, len(cfg.Analysis.DepthOptions))
		copy(out.Analysis.DepthOptions, cfg.Analysis.DepthOptions)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
