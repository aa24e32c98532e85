// Package daemoncfg loads the bessd daemon's INI-style configuration
// file: core placement, default pool sizing, and the control-socket
// address, in the same `gcfg`-backed style the teacher's ingest daemons
// use for their own config files (see original config.go's CfgType).
package daemoncfg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gravwell/gcfg"
)

const maxConfigSize int64 = 4 * 1024 * 1024 // matches the teacher's "even this is crazy large" cap

var (
	ErrConfigTooLarge  = errors.New("daemoncfg: config file too large")
	ErrFailedFileRead  = errors.New("daemoncfg: failed to read entire config file")
	ErrNoCores         = errors.New("daemoncfg: at least one core must be listed")
	ErrBadControlSock  = errors.New("daemoncfg: control socket path or address required")
	ErrInvalidPoolSize = errors.New("daemoncfg: default pool size must be positive")
)

// WorkerSpec is one `[Worker "name"]` section: a worker id, the core it
// pins to, its NUMA socket, and which scheduler variant it runs.
type WorkerSpec struct {
	Core      int
	Socket    int
	Scheduler string // "default" or "experimental"
}

// Config is the daemon's top-level configuration, mirroring the
// teacher's `CfgType{Global struct{...}; <Section> map[string]*Sub}`
// shape: one Global section plus a named map of Worker sections.
type Config struct {
	Global struct {
		Core_List          []string // e.g. "0", "1", "2"
		Default_Pool_Size  int
		Default_Pool_Kind  string // "plain", "huge", "external"
		Control_Socket     string
		Log_Level          string
		Log_File           string
		Crash_Dump_Path    string
	}
	Worker map[string]*WorkerSpec
}

// Default returns a Config with the teacher-style defaults a daemon
// falls back to when no config file is given (single core 0, a plain
// pool, stderr logging at INFO).
func Default() *Config {
	c := &Config{}
	c.Global.Core_List = []string{"0"}
	c.Global.Default_Pool_Size = 4096
	c.Global.Default_Pool_Kind = "plain"
	c.Global.Control_Socket = "/var/run/bessd.sock"
	c.Global.Log_Level = "INFO"
	c.Global.Crash_Dump_Path = "/var/run/bessd.dump"
	return c
}

// LoadFile reads and parses an INI-style config file, the same
// size-capped read-then-parse idiom as the teacher's
// config.LoadConfigFile.
func LoadFile(path string) (*Config, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, ErrConfigTooLarge
	}

	buf := bytes.NewBuffer(nil)
	n, err := io.Copy(buf, fin)
	if err != nil {
		return nil, err
	} else if n != fi.Size() {
		return nil, ErrFailedFileRead
	}
	return LoadBytes(buf.Bytes())
}

// LoadBytes parses raw INI bytes into a validated Config.
func LoadBytes(b []byte) (*Config, error) {
	if int64(len(b)) > maxConfigSize {
		return nil, ErrConfigTooLarge
	}
	c := &Config{}
	c.Global.Default_Pool_Size = Default().Global.Default_Pool_Size
	c.Global.Default_Pool_Kind = Default().Global.Default_Pool_Kind
	c.Global.Control_Socket = Default().Global.Control_Socket
	c.Global.Log_Level = Default().Global.Log_Level
	c.Global.Crash_Dump_Path = Default().Global.Crash_Dump_Path
	if err := gcfg.ReadStringInto(c, string(b)); err != nil {
		return nil, fmt.Errorf("daemoncfg: parse: %w", err)
	}
	if len(c.Global.Core_List) == 0 {
		c.Global.Core_List = []string{"0"}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the invariants a daemon needs before it launches any
// worker: at least one core, a positive default pool size, and a
// control endpoint to bind. No partially-applied state is produced —
// Validate only reads c.
func (c *Config) Validate() error {
	if len(c.Global.Core_List) == 0 {
		return ErrNoCores
	}
	if c.Global.Default_Pool_Size <= 0 {
		return ErrInvalidPoolSize
	}
	if strings.TrimSpace(c.Global.Control_Socket) == "" {
		return ErrBadControlSock
	}
	for name, w := range c.Worker {
		if w == nil {
			return fmt.Errorf("daemoncfg: worker %q has no body", name)
		}
		if w.Scheduler != "" && w.Scheduler != "default" && w.Scheduler != "experimental" {
			return fmt.Errorf("daemoncfg: worker %q: unknown scheduler %q", name, w.Scheduler)
		}
	}
	return nil
}
