// Command bessd is the dataplane daemon entrypoint: it parses the
// flags spec §6.4 names, takes a single-instance lock file, loads the
// optional INI config, wires up the module graph / traffic-class
// builder / worker runtime behind a ctrl.Server, and launches one
// worker per configured core. The control-plane RPC wire schema itself
// is out of scope (spec §1) — this binary only does the bootstrap the
// spec's CLI surface describes.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/bess-go/bessd/ctrl"
	"github.com/bess-go/bessd/graph"
	"github.com/bess-go/bessd/internal/corelog"
	"github.com/bess-go/bessd/internal/daemoncfg"
	"github.com/bess-go/bessd/module"
	"github.com/bess-go/bessd/tc"
	"github.com/bess-go/bessd/worker"
)

// sessionID is assigned once at startup and reported by get_version, the
// same role ingest/muxer.go's uuid.New() connection ids play for the
// teacher's multiplexer.
var sessionID = uuid.New().String()

func main() {
	var (
		core       = flag.String("c", "0", "core or core list to run workers on")
		testMode   = flag.Bool("t", false, "run in test mode (no lock file, no real workers launched)")
		grpcSocket = flag.String("g", "", "control socket path (unix) or address (tcp)")
		portFlag   = flag.String("p", "", "default port to create on startup (reserved; port drivers are out of scope)")
		bindAddr   = flag.String("b", "", "bind address for the control channel")
		foreground = flag.Bool("f", false, "run in the foreground instead of daemonizing")
		killOld    = flag.Bool("k", false, "kill/clear a stale instance before starting")
		skipRoot   = flag.Bool("s", false, "skip the root-privilege check")
		buffers    = flag.Int("buffers", 0, "default packet pool size (overrides config)")
		modulesCfg = flag.String("modules", "", "path to an INI config file")
	)
	flag.Parse()

	_ = portFlag // reserved: concrete port creation is out of scope (spec §1)

	logger := corelog.New(os.Stderr)
	defer logger.Close()

	if !*skipRoot && os.Geteuid() != 0 {
		logger.Warn("running without root privileges; huge-page pools and real NIC drivers would fail to initialize")
	}

	cfg := daemoncfg.Default()
	if *modulesCfg != "" {
		loaded, err := daemoncfg.LoadFile(*modulesCfg)
		if err != nil {
			logger.Fatal(1, "failed to load config", corelog.KVErr(err), corelog.KV("path", *modulesCfg))
		}
		cfg = loaded
	}
	if *bindAddr != "" {
		cfg.Global.Control_Socket = *bindAddr
	}
	if *grpcSocket != "" {
		cfg.Global.Control_Socket = *grpcSocket
	}
	if *buffers > 0 {
		cfg.Global.Default_Pool_Size = *buffers
	}
	if *core != "" {
		cfg.Global.Core_List = strings.Split(*core, ",")
	}
	if lvl, err := corelog.LevelFromString(cfg.Global.Log_Level); err == nil {
		logger.SetLevel(lvl)
	}

	if !*foreground {
		logger.Info("daemonizing is not reproduced in this runtime; continuing in the foreground", corelog.KV("session", sessionID))
	}

	var lock *flock.Flock
	if !*testMode {
		lockPath := cfg.Global.Control_Socket + ".lock"
		lock = flock.New(lockPath)
		locked, err := lock.TryLock()
		if err != nil {
			logger.Fatal(1, "failed to acquire instance lock", corelog.KVErr(err), corelog.KV("path", lockPath))
		}
		if !locked {
			if !*killOld {
				logger.Fatal(1, "another bessd instance is already running", corelog.KV("path", lockPath))
			}
			logger.Warn("stale lock found; clearing it", corelog.KV("path", lockPath))
			os.Remove(lockPath)
			if locked, err = lock.TryLock(); err != nil || !locked {
				logger.Fatal(1, "failed to acquire instance lock after clearing stale one", corelog.KVErr(err))
			}
		}
		defer lock.Unlock()
	}

	defer recoverAndDumpCrash(cfg.Global.Crash_Dump_Path, logger)

	g := graph.New()
	modules := module.NewRegistry()
	builder := tc.NewBuilder()
	workers := worker.NewRuntime()
	srv := ctrl.New(g, modules, builder, workers)

	logger.Info("bessd starting", corelog.KV("session", sessionID), corelog.KV("version", ctrl.Version))

	cores, err := parseCoreList(cfg.Global.Core_List)
	if err != nil {
		logger.Fatal(1, "invalid core list", corelog.KVErr(err))
	}

	if !*testMode {
		for wid, c := range cores {
			schedName := "default"
			if w, ok := cfg.Worker[strconv.Itoa(wid)]; ok && w.Scheduler != "" {
				schedName = w.Scheduler
			}
			if err := srv.AddWorker(wid, c, 0, schedName); err != nil {
				logger.Fatal(1, "failed to launch worker", corelog.KVErr(err), corelog.KV("wid", wid), corelog.KV("core", c))
			}
		}
		logger.Info("workers launched", corelog.KV("count", len(cores)))
	}

	if err := srv.ResumeAll(); err != nil {
		logger.Error("resume_all reported constraint violations", corelog.KVErr(err))
	}

	logger.Info("bessd ready", corelog.KV("control-socket", cfg.Global.Control_Socket))

	if *testMode {
		return
	}

	// The RPC wire schema is out of scope (spec §1): a real build would
	// accept connections on cfg.Global.Control_Socket and dispatch into
	// srv here. This loop just keeps the process (and its launched
	// workers) alive until signaled, the bootstrap boundary this
	// exercise's core stops at.
	select {}
}

func parseCoreList(cores []string) ([]int, error) {
	out := make([]int, 0, len(cores))
	seen := map[int]bool{}
	for _, s := range cores {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("core %q: %w", s, err)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no cores given")
	}
	return out, nil
}

// recoverAndDumpCrash implements spec §7's "panics abort the process
// after dumping a backtrace to a well-known crash file": it recovers
// once, writes the stack to path (falling back to $TMPDIR if path's
// directory isn't writable), then re-panics so the process still exits
// non-zero with the original failure visible on stderr.
func recoverAndDumpCrash(path string, logger *corelog.Logger) {
	r := recover()
	if r == nil {
		return
	}
	stack := debug.Stack()
	dump := fmt.Sprintf("bessd crash %s\nsession=%s\npanic: %v\n\n%s", time.Now().UTC().Format(time.RFC3339), sessionID, r, stack)

	target := path
	if err := ioutil.WriteFile(target, []byte(dump), 0640); err != nil {
		target = filepath.Join(os.TempDir(), "bessd.dump")
		_ = ioutil.WriteFile(target, []byte(dump), 0640)
	}
	logger.Critical("bessd panicked", corelog.KV("crash-dump", target))
	panic(r)
}
