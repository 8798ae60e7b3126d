package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***", for logging the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.LLM.APIKey)
	redact(&out.Admin.Token)
	redact(&out.Redis.Password)
	redact(&out.Store.DSN)
	redact(&out.Store.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Pipeline.AlwaysInclude = cloneStrings(cfg.Pipeline.AlwaysInclude)
	out.Pipeline.RestrictedCategories = cloneStrings(cfg.Pipeline.RestrictedCategories)
	out.Notify.Events = cloneStrings(cfg.Notify.Events)

	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
