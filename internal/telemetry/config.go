package telemetry

import "codeberg.org/mutker/perfwatch/internal/errors"

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/perfwatch/telemetry.db"
)

type Config struct {
	Enabled bool
	DBPath  string
}

func DefaultConfig() Config {
	return Config{
		Enabled: false,
		DBPath:  defaultDBPath,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	return nil
}
