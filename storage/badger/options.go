package badger

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/openseis/seisvol/seisvol"
)

// badgerLogger routes badger's own logging through seisvol, demoting its
// chatty info messages to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	seisvol.Errorf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	seisvol.Warningf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	seisvol.Debugf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	seisvol.Debugf("badger: "+format, args...)
}

func getOptions(path string, inMemory bool, config seisvol.Config) (*badger.Options, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(badgerLogger{})
	opts = opts.WithNumVersionsToKeep(DefaultVersionsToKeep)
	opts = opts.WithSyncWrites(DefaultSyncWrites)

	readOnly, found, err := config.GetBool("ReadOnly")
	if err != nil {
		return nil, err
	}
	if found {
		opts = opts.WithReadOnly(readOnly)
	}

	valueSizeThresh, found, err := config.GetInt("ValueThreshold")
	if err != nil {
		return nil, err
	}
	if found {
		opts = opts.WithValueThreshold(int64(valueSizeThresh))
	}

	vlogSize, found, err := config.GetInt("ValueLogFileSize")
	if err != nil {
		return nil, err
	}
	if found {
		opts = opts.WithValueLogFileSize(int64(vlogSize))
	}
	return &opts, nil
}
