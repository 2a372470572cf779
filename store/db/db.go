package db

import (
	"github.com/pkg/errors"

	"github.com/voicecal/voicecal/internal/profile"
	"github.com/voicecal/voicecal/store"
	"github.com/voicecal/voicecal/store/db/memory"
	"github.com/voicecal/voicecal/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// SQLite is the durable backend; the in-memory driver keeps the full
// operation-log semantics without touching disk and is the default for
// demo mode and tests.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "memory":
		driver = memory.NewDB(profile)
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'memory' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
