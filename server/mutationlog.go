package server

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/janelia-flyem/protolog"
	"github.com/twinj/uuid"

	"github.com/openseis/seisvol/seisvol"
)

const jsonMsgTypeID uint16 = 1 // used for protolog

var (
	mutOrderID uint64
	journal    *logFile
	journalMu  sync.Mutex
)

type logFile struct {
	sync.RWMutex
	f *os.File
}

// MutationsConfig specifies handling of the mutation journal, an append-only
// protolog file of JSON records, one per import, deletion or survey change.
type MutationsConfig struct {
	// Journal is the path of the protolog file.  Empty disables the journal.
	Journal string
}

func openJournal(cfg MutationsConfig) error {
	journalMu.Lock()
	defer journalMu.Unlock()
	if journal != nil {
		journal.f.Close()
		journal = nil
	}
	if cfg.Journal == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Journal), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(cfg.Journal, os.O_APPEND|os.O_CREATE|os.O_RDWR|os.O_SYNC, 0644)
	if err != nil {
		return err
	}
	journal = &logFile{f: f}
	seisvol.Infof("Logging mutations to %s\n", cfg.Journal)
	return nil
}

func closeJournal() {
	journalMu.Lock()
	defer journalMu.Unlock()
	if journal != nil {
		if err := journal.f.Close(); err != nil {
			seisvol.Errorf("unable to close mutation journal: %v\n", err)
		}
		journal = nil
	}
}

// LogMutation adds an id and order number to a mutation record and appends
// it to the journal, if one is configured.
func LogMutation(mutation map[string]interface{}) error {
	journalMu.Lock()
	defer journalMu.Unlock()
	mutOrderID++
	mutation["mutation_id"] = uuid.NewV4().String()
	mutation["order"] = mutOrderID
	if journal == nil {
		return nil
	}
	jsondata, err := json.Marshal(mutation)
	if err != nil {
		return fmt.Errorf("error marshaling JSON for mutation: %v", err)
	}
	journal.Lock()
	w := protolog.NewTypedWriter(jsonMsgTypeID, journal.f)
	_, err = w.Write(jsondata)
	journal.Unlock()
	return err
}

// ReadMutations streams the journal as a JSON array to the writer.  With no
// journal configured an empty array is written.
func ReadMutations(w io.Writer) error {
	journalMu.Lock()
	lf := journal
	journalMu.Unlock()
	if lf == nil {
		_, err := w.Write([]byte("[]"))
		return err
	}

	rf, err := os.Open(lf.f.Name())
	if err != nil {
		return fmt.Errorf("unable to read mutation journal: %v", err)
	}
	defer rf.Close()
	lf.RLock()
	defer lf.RUnlock()

	r := protolog.NewReader(rf)
	if _, err := w.Write([]byte("[")); err != nil {
		return err
	}
	numMutations := 0
	for {
		typeID, jsondata, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading mutation journal after %d records: %v", numMutations, err)
		}
		if typeID != jsonMsgTypeID {
			seisvol.Criticalf("Unknown message type %d in mutation log: %s\n", typeID, string(jsondata))
			continue
		}
		if numMutations != 0 {
			if _, err := w.Write([]byte(",")); err != nil {
				return err
			}
		}
		if _, err := w.Write(jsondata); err != nil {
			return err
		}
		numMutations++
	}
	_, err = w.Write([]byte("]"))
	return err
}
