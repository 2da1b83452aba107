package server

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"
)

const (
	// DefaultWebAddress is the default URL of the seisvol web server
	DefaultWebAddress = "localhost:8000"

	// DefaultRPCAddress is the default RPC address for command-line use of a remote seisvol server
	DefaultRPCAddress = "localhost:8001"

	// DefaultStoreEngine is used when the [store] section names no engine.
	DefaultStoreEngine = "badger"
)

var (
	// DefaultHost is the default most understandable alias for this server.
	DefaultHost = "localhost"

	// the parsed TOML configuration data
	tc tomlConfig

	// the TOML config file location
	tcLocation string
)

func init() {
	// Set default Host name for understandability from user perspective.
	// Assumes Linux or Mac.
	cmd := exec.Command("/bin/hostname", "-f")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		seisvol.Errorf("Unable to get default Host name via /bin/hostname: %v\n", err)
		seisvol.Errorf("Using 'localhost' as default Host name.\n")
		return
	}
	DefaultHost = strings.TrimSpace(out.String())
}

type tomlConfig struct {
	Server    serverConfig
	Logging   seisvol.LogConfig
	Store     storeConfig
	Cache     map[string]sizeConfig
	Auth      authConfig
	Kafka     storage.KafkaConfig
	Mutations MutationsConfig
}

// serverConfig holds the [server] settings.
type serverConfig struct {
	Host          string
	HTTPAddress   string
	RPCAddress    string
	Note          string
	PidFile       string `toml:"pid_file"`
	BlockListFile string `toml:"blocklist_file"`

	// AllowedOrigins enables CORS for the listed origins.  "*" allows all.
	AllowedOrigins []string `toml:"allowed_origins"`

	// MaxFileJobs limits concurrent SEG-Y file reads.  Zero uses all CPUs.
	MaxFileJobs int `toml:"max_file_jobs"`

	// RejectIrregular fails imports whose line spacing is not uniform.
	RejectIrregular bool `toml:"reject_irregular"`
}

// storeConfig is the [store] section: an "engine" key plus engine-specific
// settings such as "path".
type storeConfig map[string]interface{}

type sizeConfig struct {
	Size int // size in MB
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *tomlConfig) convertPathsToAbsolute(configPath string) error {
	// [server].pid_file
	if c.Server.PidFile != "" {
		c.Server.PidFile = seisvol.ConvertToAbsolute(c.Server.PidFile, configPath)
	}

	// [server].blocklist_file
	if c.Server.BlockListFile != "" {
		c.Server.BlockListFile = seisvol.ConvertToAbsolute(c.Server.BlockListFile, configPath)
	}

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile = seisvol.ConvertToAbsolute(c.Logging.Logfile, configPath)
	}

	// [auth].auth_file
	if c.Auth.AuthFile != "" {
		c.Auth.AuthFile = seisvol.ConvertToAbsolute(c.Auth.AuthFile, configPath)
	}

	// [mutations].journal
	if c.Mutations.Journal != "" {
		c.Mutations.Journal = seisvol.ConvertToAbsolute(c.Mutations.Journal, configPath)
	}

	// [store].path
	if p, found := c.Store["path"]; found {
		path, ok := p.(string)
		if !ok {
			return fmt.Errorf("don't understand path setting %v for store", p)
		}
		if path != ":memory:" {
			c.Store["path"] = seisvol.ConvertToAbsolute(path, configPath)
		}
	}
	return nil
}

// StoreConfig returns the metadata store configuration from the [store] section.
func StoreConfig() seisvol.StoreConfig {
	c := seisvol.NewConfig()
	engine := DefaultStoreEngine
	for k, v := range tc.Store {
		if strings.ToLower(k) == "engine" {
			if s, ok := v.(string); ok && s != "" {
				engine = s
			}
			continue
		}
		c.Set(k, v)
	}
	return seisvol.StoreConfig{Config: c, Engine: engine}
}

// LoadConfig loads seisvol server configuration from a TOML file.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("no server TOML configuration file provided")
	}
	var c tomlConfig
	if _, err := toml.DecodeFile(filename, &c); err != nil {
		return fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	tc = c
	tcLocation = filename
	seisvol.Debugf("tomlConfig: %v\n", tc)
	return nil
}

// Host returns the most understandable host alias + any port.
func Host() string {
	host := tc.Server.Host
	if host == "" {
		host = DefaultHost
	}
	parts := strings.Split(HTTPAddress(), ":")
	if len(parts) > 1 {
		host = host + ":" + parts[len(parts)-1]
	}
	return host
}

func ConfigLocation() string {
	return tcLocation
}

func Note() string {
	return tc.Server.Note
}

func HTTPAddress() string {
	if tc.Server.HTTPAddress == "" {
		return DefaultWebAddress
	}
	return tc.Server.HTTPAddress
}

func RPCAddress() string {
	if tc.Server.RPCAddress == "" {
		return DefaultRPCAddress
	}
	return tc.Server.RPCAddress
}

// MaxFileJobs returns the number of SEG-Y files that may be read at once.
func MaxFileJobs() int {
	if tc.Server.MaxFileJobs <= 0 {
		return runtime.NumCPU()
	}
	return tc.Server.MaxFileJobs
}

func RejectIrregular() bool {
	return tc.Server.RejectIrregular
}

func KafkaAvailable() bool {
	return len(tc.Kafka.Servers) != 0
}

func MutationLogSpec() MutationsConfig {
	return tc.Mutations
}

// CacheSize returns the number of bytes reserved for the given identifier.
// If unset, will return 0.
func CacheSize(id string) int {
	if tc.Cache == nil {
		return 0
	}
	setting, found := tc.Cache[id]
	if !found {
		return 0
	}
	return setting.Size * seisvol.Mega
}

func writePidFile() error {
	if tc.Server.PidFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(tc.Server.PidFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(tc.Server.PidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
