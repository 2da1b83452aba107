package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openseis/seisvol/rpc"
	"github.com/openseis/seisvol/seisvol"
)

const testConfig = `
[server]
httpAddress = "localhost:9100"
rpcAddress = "localhost:9101"
note = "test server"
pid_file = "run/seisvol.pid"
allowed_origins = ["*"]
max_file_jobs = 3
reject_irregular = true

[logging]
logfile = "logs/seisvol.log"
max_log_size = 100
max_log_age = 7

[store]
engine = "sqlite"
path = "meta/seisvol.db"

[cache.geometry]
size = 16

[auth]
secret_key = "shh"
token_hours = 2

[kafka]
servers = ["kafka1:9092", "kafka2:9092"]
topicActivity = "allActivity"

[mutations]
journal = "journal/mutations.log"
`

func containsAll(s string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(s, part) {
			return false
		}
	}
	return true
}

func TestLoadConfig(t *testing.T) {
	defer func() { tc = tomlConfig{} }()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(testConfig), 0644); err != nil {
		t.Fatalf("can't write config: %v\n", err)
	}
	if err := LoadConfig(path); err != nil {
		t.Fatalf("can't load config: %v\n", err)
	}

	if HTTPAddress() != "localhost:9100" || RPCAddress() != "localhost:9101" {
		t.Errorf("bad addresses: %s, %s\n", HTTPAddress(), RPCAddress())
	}
	if Note() != "test server" || ConfigLocation() != path {
		t.Errorf("bad note %q or location %q\n", Note(), ConfigLocation())
	}
	if MaxFileJobs() != 3 || !RejectIrregular() {
		t.Errorf("bad file job settings: %d, %t\n", MaxFileJobs(), RejectIrregular())
	}
	if CacheSize("geometry") != 16*seisvol.Mega || CacheSize("other") != 0 {
		t.Errorf("bad cache size: %d\n", CacheSize("geometry"))
	}
	if !KafkaAvailable() || tc.Kafka.TopicActivity != "allActivity" {
		t.Errorf("bad kafka config: %+v\n", tc.Kafka)
	}
	if !authEnabled() || tc.Auth.TokenHours != 2 {
		t.Errorf("bad auth config: %+v\n", tc.Auth)
	}
	if len(tc.Server.AllowedOrigins) != 1 || tc.Server.AllowedOrigins[0] != "*" {
		t.Errorf("bad allowed origins: %v\n", tc.Server.AllowedOrigins)
	}
	if tc.Logging.MaxSize != 100 || tc.Logging.MaxAge != 7 {
		t.Errorf("bad logging config: %+v\n", tc.Logging)
	}

	// Relative paths are relative to the config file.
	if expected := filepath.Join(dir, "run/seisvol.pid"); tc.Server.PidFile != expected {
		t.Errorf("expected pid file %q, got %q\n", expected, tc.Server.PidFile)
	}
	if expected := filepath.Join(dir, "logs/seisvol.log"); tc.Logging.Logfile != expected {
		t.Errorf("expected log file %q, got %q\n", expected, tc.Logging.Logfile)
	}
	if expected := filepath.Join(dir, "journal/mutations.log"); MutationLogSpec().Journal != expected {
		t.Errorf("expected journal %q, got %q\n", expected, MutationLogSpec().Journal)
	}

	sc := StoreConfig()
	if sc.Engine != "sqlite" {
		t.Errorf("expected sqlite engine, got %q\n", sc.Engine)
	}
	if _, found := sc.Get("engine"); found {
		t.Errorf("engine should not be passed to the store config\n")
	}
	storePath, found, err := sc.GetString("path")
	if err != nil || !found || storePath != filepath.Join(dir, "meta/seisvol.db") {
		t.Errorf("bad store path %q (found %t, err %v)\n", storePath, found, err)
	}
}

func TestConfigDefaults(t *testing.T) {
	defer func() { tc = tomlConfig{} }()

	path := filepath.Join(t.TempDir(), "empty.toml")
	if err := os.WriteFile(path, []byte("[store]\npath = \":memory:\"\n"), 0644); err != nil {
		t.Fatalf("can't write config: %v\n", err)
	}
	if err := LoadConfig(path); err != nil {
		t.Fatalf("can't load config: %v\n", err)
	}
	if HTTPAddress() != DefaultWebAddress || RPCAddress() != DefaultRPCAddress {
		t.Errorf("expected default addresses, got %s and %s\n", HTTPAddress(), RPCAddress())
	}
	if MaxFileJobs() < 1 || CacheSize("geometry") != 0 || KafkaAvailable() || authEnabled() {
		t.Errorf("bad defaults\n")
	}
	sc := StoreConfig()
	if sc.Engine != DefaultStoreEngine {
		t.Errorf("expected default engine %q, got %q\n", DefaultStoreEngine, sc.Engine)
	}
	if p, _, _ := sc.GetString("path"); p != ":memory:" {
		t.Errorf("in-memory path should be kept, got %q\n", p)
	}

	if err := LoadConfig(""); err == nil {
		t.Errorf("expected error with no config file\n")
	}
	if err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("expected error on missing config file\n")
	}
}

func TestRPCCommands(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()

	help, err := doCommand(rpc.Command{"help"})
	if err != nil || help == "" {
		t.Fatalf("bad help: %v\n", err)
	}
	if _, err := doCommand(rpc.Command{"import"}); err == nil {
		t.Errorf("expected error on import without path\n")
	}
	if _, err := doCommand(rpc.Command{"bogus"}); err == nil {
		t.Errorf("expected error on unknown command\n")
	}

	path := writeTestVolume(t, "rpc.sgy")
	out, err := doCommand(rpc.Command{"import", path, "rpcvol"})
	if err != nil {
		t.Fatalf("rpc import failed: %v\n", err)
	}
	if !containsAll(out, "rpcvol", "survey") {
		t.Errorf("unexpected import output:\n%s\n", out)
	}
	out, err = doCommand(rpc.Command{"volumes"})
	if err != nil || !containsAll(out, "rpcvol", "100-103", "1000-1010", path) {
		t.Errorf("unexpected volumes output (%v):\n%s\n", err, out)
	}
	out, err = doCommand(rpc.Command{"surveys"})
	if err != nil || !containsAll(out, "rpcvol", "(1000, 2000)") {
		t.Errorf("unexpected surveys output (%v):\n%s\n", err, out)
	}
	out, err = doCommand(rpc.Command{"about"})
	if err != nil || !containsAll(out, seisvol.Version) {
		t.Errorf("unexpected about output (%v):\n%s\n", err, out)
	}
}
