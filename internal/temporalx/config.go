package temporalx

import "time"

// Config selects the Temporal cluster analysis jobs are dispatched to. An
// empty Address disables Temporal; the DB-backed worker still runs every job.
type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout time.Duration
	DialMaxWait time.Duration
	// AutoRegisterNamespace creates the namespace when missing. Self-hosted
	// clusters only.
	AutoRegisterNamespace bool
	RetentionDays         int
}

func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = "agora"
	}
	if c.TaskQueue == "" {
		c.TaskQueue = "agora-analysis"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialMaxWait < 0 {
		c.DialMaxWait = 0
	}
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		c.RetentionDays = 7
	}
	return c
}

func clampBackoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}
