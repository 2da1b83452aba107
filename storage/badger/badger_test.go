package badger

import (
	"path/filepath"
	"testing"

	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"
)

func TestBadgerMetadataStore(t *testing.T) {
	store, err := storage.NewTestStore("badger")
	if err != nil {
		t.Fatalf("can't open test badger store: %v\n", err)
	}
	defer store.Close()
	storage.TestMetadataStore(t, store)
}

func TestBadgerReopen(t *testing.T) {
	for _, compression := range []string{"none", "snappy", "zstd"} {
		path := filepath.Join(t.TempDir(), "db")
		c := seisvol.NewConfig()
		c.Set("path", path)
		c.Set("compression", compression)
		config := seisvol.StoreConfig{Config: c, Engine: "badger"}

		store, created, err := storage.NewStore(config)
		if err != nil {
			t.Fatalf("can't open badger at %s: %v\n", path, err)
		}
		if !created {
			t.Errorf("expected new database to be reported as created\n")
		}
		if !store.Equal(config) {
			t.Errorf("store should match its own config\n")
		}
		id, err := store.PutVolume(&storage.Volume{Name: "persisted", FilePath: "/a.sgy"})
		if err != nil {
			t.Fatalf("put: %v\n", err)
		}
		store.Close()

		store, created, err = storage.NewStore(config)
		if err != nil {
			t.Fatalf("can't reopen badger: %v\n", err)
		}
		if created {
			t.Errorf("reopened database reported as created\n")
		}
		v, err := store.GetVolume(id)
		if err != nil || v.Name != "persisted" {
			t.Errorf("volume not persisted with %s compression: %v, %v\n", compression, v, err)
		}
		id2, err := store.PutVolume(&storage.Volume{Name: "second", FilePath: "/b.sgy"})
		if err != nil {
			t.Fatalf("put after reopen: %v\n", err)
		}
		if id2 == id {
			t.Errorf("id %d reused after reopen\n", id)
		}
		store.Close()
	}
}

func TestBadConfig(t *testing.T) {
	if _, _, err := storage.NewStore(seisvol.StoreConfig{Config: seisvol.NewConfig(), Engine: "badger"}); err == nil {
		t.Errorf("expected error when path is missing\n")
	}
	c := seisvol.NewConfig()
	c.Set("inmemory", true)
	c.Set("compression", "lz4")
	if _, _, err := storage.NewStore(seisvol.StoreConfig{Config: c, Engine: "badger"}); err == nil {
		t.Errorf("expected error for unknown compression\n")
	}
}
