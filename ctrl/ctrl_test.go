package ctrl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bess-go/bessd/graph"
	"github.com/bess-go/bessd/metadata"
	"github.com/bess-go/bessd/module"
	"github.com/bess-go/bessd/tc"
	"github.com/bess-go/bessd/worker"
)

type stubModule struct {
	module.Base
	desc string
}

func (m *stubModule) Init(arg interface{}) error { return nil }
func (m *stubModule) Deinit()                    {}
func (m *stubModule) GetDesc() string             { return m.desc }

func stubDesc(name string, igates, ogates int) *module.ClassDesc {
	return &module.ClassDesc{
		Name:      name,
		NumIGates: igates,
		NumOGates: ogates,
		NewInstance: func() module.Module {
			return &stubModule{desc: name}
		},
	}
}

func newTestServer() *Server {
	return New(graph.New(), module.NewRegistry(), tc.NewBuilder(), worker.NewRuntime())
}

func TestGetVersion(t *testing.T) {
	s := newTestServer()
	require.Equal(t, Version, s.GetVersion())
}

func TestAddWorkerThenResumeAllRunsIt(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.AddWorker(0, 0, 0, "default"))
	require.NoError(t, s.ResumeAll())
	require.Equal(t, []int{0}, s.ListWorkers())
	s.Kill()
}

func TestAddWorkerRejectsUnknownScheduler(t *testing.T) {
	s := newTestServer()
	require.ErrorIs(t, s.AddWorker(0, 0, 0, "bogus"), ErrUnknownScheduler)
}

func TestAddWorkerRejectsDuplicateWID(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.AddWorker(0, 0, 0, "default"))
	require.Error(t, s.AddWorker(0, 1, 0, "default"))
	s.Kill()
}

func TestCreateModuleConnectDisconnectDestroy(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Modules.Register(stubDesc("Source", 0, 1)))
	require.NoError(t, s.Modules.Register(stubDesc("Sink", 1, 0)))

	srcName, err := s.CreateModule("Source", "", nil, nil)
	require.NoError(t, err)
	sinkName, err := s.CreateModule("Sink", "snk0", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "snk0", sinkName)

	require.NoError(t, s.ConnectModules(srcName, 0, sinkName, 0, false))
	require.ElementsMatch(t, []string{srcName, sinkName}, s.ListModules())

	require.NoError(t, s.DisconnectModules(srcName, 0))
	require.NoError(t, s.DestroyModule(srcName))
	require.NoError(t, s.DestroyModule(sinkName))
	require.Empty(t, s.ListModules())
}

func TestCreateModuleUnknownClass(t *testing.T) {
	s := newTestServer()
	_, err := s.CreateModule("NoSuchClass", "", nil, nil)
	require.ErrorIs(t, err, module.ErrClassNotFound)
}

func TestResetModulesDestroysEverything(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Modules.Register(stubDesc("Source", 0, 1)))
	_, err := s.CreateModule("Source", "a", nil, nil)
	require.NoError(t, err)
	_, err = s.CreateModule("Source", "b", nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.ResetModules())
	require.Empty(t, s.ListModules())
}

func TestListMclassSorted(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Modules.Register(stubDesc("Zeta", 0, 1)))
	require.NoError(t, s.Modules.Register(stubDesc("Alpha", 0, 1)))
	require.Equal(t, []string{"Alpha", "Zeta"}, s.ListMclass())
}

func TestAddTCAttachesUnderParent(t *testing.T) {
	s := newTestServer()
	_, err := s.AddTC(AddTCParams{Name: "root", Policy: tc.PolicyPriority})
	require.NoError(t, err)
	_, err = s.AddTC(AddTCParams{Name: "leaf", Policy: tc.PolicyPriority, ParentName: "nope"})
	require.ErrorIs(t, err, ErrNotFound)

	rr, err := s.AddTC(AddTCParams{Name: "rr", Policy: tc.PolicyRoundRobin, ParentName: "root"})
	require.NoError(t, err)
	require.NotNil(t, rr)
	require.ElementsMatch(t, []string{"root", "rr"}, s.ListTCs())
}

func TestAddTCUnknownPolicy(t *testing.T) {
	s := newTestServer()
	_, err := s.AddTC(AddTCParams{Name: "x", Policy: tc.Policy(99)})
	require.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestUpdateTCParamsRequiresRateLimit(t *testing.T) {
	s := newTestServer()
	_, err := s.AddTC(AddTCParams{Name: "rr", Policy: tc.PolicyRoundRobin})
	require.NoError(t, err)
	require.ErrorIs(t, s.UpdateTCParams("rr", 1, 1, 1_000_000_000), ErrNotAttachable)
}

func TestUpdateTCParamsPerSecondConfiguresRateLimit(t *testing.T) {
	s := newTestServer()
	rl, err := s.AddTC(AddTCParams{Name: "rl", Policy: tc.PolicyRateLimit, Resource: tc.ResourcePacket})
	require.NoError(t, err)

	require.NoError(t, s.UpdateTCParamsPerSecond("rl", 1_000_000, 2_000_000, 1_000_000_000))
	require.Equal(t, uint64(1_000_000), rl.LimitArg())
	require.Equal(t, uint64(2_000_000), rl.MaxBurstArg())
}

func TestUpdateTCParentReattaches(t *testing.T) {
	s := newTestServer()
	_, err := s.AddTC(AddTCParams{Name: "a", Policy: tc.PolicyPriority})
	require.NoError(t, err)
	_, err = s.AddTC(AddTCParams{Name: "b", Policy: tc.PolicyPriority})
	require.NoError(t, err)
	_, err = s.AddTC(AddTCParams{Name: "leaf", Policy: tc.PolicyPriority, ParentName: "a"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateTCParent("leaf", "b", 0, 0))
}

func TestResetAllPausesExactlyOnce(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.AddWorker(0, 0, 0, "default"))
	require.NoError(t, s.ResumeAll())

	require.NoError(t, s.Modules.Register(stubDesc("Source", 0, 1)))
	_, err := s.CreateModule("Source", "a", nil, nil)
	require.NoError(t, err)

	resumes := 0
	require.NoError(t, s.ConfigureResumeHook("count-resumes", 0, func() error {
		resumes++
		return nil
	}))
	resumes = 0

	require.NoError(t, s.ResetAll())
	require.Empty(t, s.ListModules())
	require.Equal(t, 1, resumes)

	w, ok := s.Workers.Worker(0)
	require.True(t, ok)
	require.Equal(t, worker.StatusRunning, w.Status())
	s.Kill()
}

func TestGatehookRegistryBuiltins(t *testing.T) {
	s := newTestServer()
	classes := s.ListGatehookClass()
	require.Contains(t, classes, "counter")
	require.Contains(t, classes, "capture")
}

func TestConfigureGatehookAndCommand(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Modules.Register(stubDesc("Source", 0, 1)))
	require.NoError(t, s.Modules.Register(stubDesc("Sink", 1, 0)))
	name, err := s.CreateModule("Source", "", nil, nil)
	require.NoError(t, err)
	sinkName, err := s.CreateModule("Sink", "", nil, nil)
	require.NoError(t, err)
	// Gates exist only once connected; skip the default counter hooks so
	// the one configured below is the only hook on the gate.
	require.NoError(t, s.ConnectModules(name, 0, sinkName, 0, true))

	ref := GateRef{Module: name, Direction: true, Index: 0}
	require.NoError(t, s.ConfigureGatehook(ref, "counter", nil))

	hooks, err := s.ListGatehooks(ref)
	require.NoError(t, err)
	require.Equal(t, []string{"counter"}, hooks)

	_, err = s.GatehookCommand(ref, "counter", "get_summary", nil)
	require.Error(t, err) // counter hook is not Commandable; ErrNotSupported
	require.ErrorIs(t, err, module.ErrNotSupported)
}

func TestConfigureGatehookUnknownClass(t *testing.T) {
	s := newTestServer()
	err := s.ConfigureGatehook(GateRef{Module: "x"}, "bogus", nil)
	require.ErrorIs(t, err, ErrGateHookClassNotFound)
}

func TestConfigureResumeHookRuns(t *testing.T) {
	s := newTestServer()
	ran := false
	require.NoError(t, s.ConfigureResumeHook("mark-ran", 0, func() error {
		ran = true
		return nil
	}))
	require.NoError(t, s.ResumeAll())
	require.True(t, ran)
}

func TestPluginOperationsAreNotSupported(t *testing.T) {
	s := newTestServer()
	require.ErrorIs(t, s.ImportPlugin("x"), module.ErrNotSupported)
	require.ErrorIs(t, s.UnloadPlugin("x"), module.ErrNotSupported)
	_, err := s.ListPlugins()
	require.ErrorIs(t, err, module.ErrNotSupported)
}

func TestCheckSchedulingConstraintsEmptyGraphIsClean(t *testing.T) {
	s := newTestServer()
	require.Empty(t, s.CheckSchedulingConstraints())
}

func TestMetadataAttributeSurvivesCreateModule(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Modules.Register(stubDesc("Source", 0, 1)))
	_, err := s.CreateModule("Source", "src", nil, []metadata.Attribute{
		{Name: "ts", Size: 8, Mode: metadata.Write},
	})
	require.NoError(t, err)
}
