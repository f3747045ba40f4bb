package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/hub"
	"github.com/alarmbridge/sia2mqtt/internal/log"
	"github.com/alarmbridge/sia2mqtt/internal/types"
)

// fakeAPI serves canned data and counts calls.
type fakeAPI struct {
	mu       sync.Mutex
	hubs     []types.Hub
	devices  map[string][]types.Device
	groups   map[string][]types.Group
	rooms    map[string][]types.Room
	hubsErr  error
	loginErr error
	calls    map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		devices: make(map[string][]types.Device),
		groups:  make(map[string][]types.Group),
		rooms:   make(map[string][]types.Room),
		calls:   make(map[string]int),
	}
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) Login(ctx context.Context) (*hub.Session, error) {
	f.count("Login")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &hub.Session{Token: "tok"}, nil
}

func (f *fakeAPI) GetHubs(ctx context.Context) ([]types.Hub, error) {
	f.count("GetHubs")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hubsErr != nil {
		return nil, f.hubsErr
	}
	return append([]types.Hub(nil), f.hubs...), nil
}

func (f *fakeAPI) GetHub(ctx context.Context, hubID string) (*types.Hub, error) {
	f.count("GetHub")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.hubs {
		if h.ID == hubID {
			h := h
			return &h, nil
		}
	}
	return nil, &hub.APIError{Msg: "no such hub", StatusCode: 404}
}

func (f *fakeAPI) GetDevices(ctx context.Context, hubID string) ([]types.Device, error) {
	f.count("GetDevices")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Device, len(f.devices[hubID]))
	for i, d := range f.devices[hubID] {
		d.Model = d.Model.Clone()
		out[i] = d
	}
	return out, nil
}

func (f *fakeAPI) GetDevice(ctx context.Context, hubID, deviceID string) (*types.Device, error) {
	f.count("GetDevice")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices[hubID] {
		if d.ID == deviceID {
			d := d
			return &d, nil
		}
	}
	return nil, &hub.APIError{Msg: "no such device", StatusCode: 404}
}

func (f *fakeAPI) GetGroups(ctx context.Context, hubID string) ([]types.Group, error) {
	f.count("GetGroups")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Group(nil), f.groups[hubID]...), nil
}

func (f *fakeAPI) GetRooms(ctx context.Context, hubID string) ([]types.Room, error) {
	f.count("GetRooms")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Room(nil), f.rooms[hubID]...), nil
}

func (f *fakeAPI) SetHubArming(ctx context.Context, hubID string, cmd types.ArmCommand) error {
	f.count("SetHubArming")
	return nil
}

func (f *fakeAPI) SetGroupArming(ctx context.Context, hubID, groupID string, cmd types.ArmCommand) error {
	f.count("SetGroupArming")
	return nil
}

func (f *fakeAPI) SendDeviceCommand(ctx context.Context, hubID, deviceID, command, deviceType string) error {
	f.count("SendDeviceCommand")
	return nil
}

func (f *fakeAPI) setArmed(hubID string, state types.ArmState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.hubs {
		if f.hubs[i].ID == hubID {
			f.hubs[i].Armed = state
		}
	}
}

func (f *fakeAPI) setHubsErr(err error) {
	f.mu.Lock()
	f.hubsErr = err
	f.mu.Unlock()
}

// fakeScheduler collects pending callbacks so tests can fire them on demand.
type fakeScheduler struct {
	mu      sync.Mutex
	pending []*fakeEntry
	last    time.Duration
}

type fakeEntry struct {
	d  time.Duration
	fn func()
	t  *fakeTimer
}

type fakeTimer struct {
	mu       sync.Mutex
	fired    bool
	canceled bool
}

func (t *fakeTimer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.canceled {
		return false
	}
	t.canceled = true
	return true
}

func (s *fakeScheduler) After(d time.Duration, fn func()) TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &fakeEntry{d: d, fn: fn, t: &fakeTimer{}}
	s.pending = append(s.pending, e)
	s.last = d
	return e.t
}

func (s *fakeScheduler) lastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// fire runs every live pending callback with delay <= max. Callbacks
// scheduled while firing wait for the next call.
func (s *fakeScheduler) fire(max time.Duration) int {
	s.mu.Lock()
	var due []*fakeEntry
	var rest []*fakeEntry
	for _, e := range s.pending {
		e.t.mu.Lock()
		live := !e.t.canceled
		e.t.mu.Unlock()
		if !live {
			continue
		}
		if e.d <= max {
			due = append(due, e)
		} else {
			rest = append(rest, e)
		}
	}
	s.pending = rest
	s.mu.Unlock()

	for _, e := range due {
		e.t.mu.Lock()
		if e.t.canceled {
			e.t.mu.Unlock()
			continue
		}
		e.t.fired = true
		e.t.mu.Unlock()
		e.fn()
	}
	return len(due)
}

func (s *fakeScheduler) fireAll() int {
	return s.fire(time.Duration(1<<62) - 1)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.FullPollEvery = 3
	p.UnavailableAfter = 2
	return p
}

func seedAPI() *fakeAPI {
	api := newFakeAPI()
	api.hubs = []types.Hub{{
		ID:         "h1",
		Name:       "Home",
		SIAAccount: "001234",
		Online:     true,
		Armed:      types.ArmStateDisarmed,
	}}
	api.rooms["h1"] = []types.Room{{ID: "r1", Name: "Hallway"}}
	api.groups["h1"] = []types.Group{{ID: "g1", HubID: "h1", Name: "Perimeter"}}
	api.devices["h1"] = []types.Device{
		{ID: "d1", HubID: "h1", Name: "Front Door", Type: "doorwindow", RoomID: "r1", Online: true,
			Model: types.DeviceModel{types.ModelKeyReedClosed: true}},
		{ID: "d2", HubID: "h1", Name: "Hall PIR", Type: "motion", RoomID: "r1", Online: true},
	}
	return api
}

func newTestCoordinator(api *fakeAPI) (*Coordinator, *fakeScheduler, *fakeClock) {
	sched := &fakeScheduler{}
	clk := &fakeClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	c := New(api, testPolicy(), sched, log.NewLogger("error"))
	c.now = clk.Now
	return c, sched, clk
}

func drainHubChanges(c *Coordinator) []HubChange {
	var out []HubChange
	for {
		select {
		case ch := <-c.HubChanges():
			out = append(out, ch)
		default:
			return out
		}
	}
}

func drainDeviceChanges(c *Coordinator) []DeviceChange {
	var out []DeviceChange
	for {
		select {
		case ch := <-c.DeviceChanges():
			out = append(out, ch)
		default:
			return out
		}
	}
}

func drainGroupChanges(c *Coordinator) []GroupChange {
	var out []GroupChange
	for {
		select {
		case ch := <-c.GroupChanges():
			out = append(out, ch)
		default:
			return out
		}
	}
}

func TestFirstPollIsFull(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()

	if n := sched.fireAll(); n != 1 {
		t.Fatalf("fired %d timers, want 1", n)
	}

	for name, want := range map[string]int{
		"GetHubs": 1, "GetHub": 1, "GetRooms": 1, "GetGroups": 1, "GetDevices": 1,
	} {
		if got := api.callCount(name); got != want {
			t.Errorf("%s called %d times, want %d", name, got, want)
		}
	}

	hubChanges := drainHubChanges(c)
	if len(hubChanges) != 1 || hubChanges[0].Hub.ID != "h1" {
		t.Errorf("hub changes = %+v, want one for h1", hubChanges)
	}
	deviceChanges := drainDeviceChanges(c)
	if len(deviceChanges) != 2 {
		t.Errorf("device changes = %d, want 2", len(deviceChanges))
	}
	for _, ch := range deviceChanges {
		if !ch.Added {
			t.Errorf("device %s not marked Added on discovery", ch.Device.ID)
		}
	}
	if got := drainGroupChanges(c); len(got) != 1 {
		t.Errorf("group changes = %d, want 1", len(got))
	}

	d, ok := c.Device("h1", "d1")
	if !ok {
		t.Fatal("device d1 missing from state")
	}
	if d.RoomName != "Hallway" {
		t.Errorf("RoomName = %q, want Hallway", d.RoomName)
	}
	if g, ok := c.Group("h1", "g1"); !ok || g.Name != "Perimeter" {
		t.Errorf("group g1 = %+v %v", g, ok)
	}
	if c.LastUpdate().IsZero() {
		t.Error("LastUpdate still zero after successful poll")
	}
}

func TestPartialPollReusesMetadata(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()

	sched.fireAll() // full
	sched.fireAll() // partial
	sched.fireAll() // partial

	if got := api.callCount("GetHubs"); got != 3 {
		t.Errorf("GetHubs = %d, want 3", got)
	}
	if got := api.callCount("GetDevices"); got != 3 {
		t.Errorf("GetDevices = %d, want 3", got)
	}
	for _, name := range []string{"GetHub", "GetRooms", "GetGroups"} {
		if got := api.callCount(name); got != 1 {
			t.Errorf("%s = %d on partial polls, want 1", name, got)
		}
	}

	// Fourth cycle is full again per the cadence.
	sched.fireAll()
	if got := api.callCount("GetRooms"); got != 2 {
		t.Errorf("GetRooms = %d after cadence rollover, want 2", got)
	}

	// Metadata survived the partial polls.
	if d, _ := c.Device("h1", "d1"); d.RoomName != "Hallway" {
		t.Errorf("RoomName = %q after partial poll, want Hallway", d.RoomName)
	}
}

func TestIdenticalPollEmitsNothing(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()

	sched.fireAll()
	drainHubChanges(c)
	drainDeviceChanges(c)
	drainGroupChanges(c)

	sched.fireAll()
	if got := drainHubChanges(c); len(got) != 0 {
		t.Errorf("hub changes on identical poll: %+v", got)
	}
	if got := drainDeviceChanges(c); len(got) != 0 {
		t.Errorf("device changes on identical poll: %+v", got)
	}
	if got := drainGroupChanges(c); len(got) != 0 {
		t.Errorf("group changes on identical poll: %+v", got)
	}
}

func TestPollDetectsChanges(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()

	sched.fireAll()
	drainHubChanges(c)
	drainDeviceChanges(c)

	api.setArmed("h1", types.ArmStateArmed)
	api.mu.Lock()
	api.devices["h1"][0].Model[types.ModelKeyReedClosed] = false
	api.mu.Unlock()

	sched.fireAll()

	hubChanges := drainHubChanges(c)
	if len(hubChanges) != 1 || !hubChanges[0].StateChanged {
		t.Fatalf("hub changes = %+v, want one state change", hubChanges)
	}
	if hubChanges[0].Hub.Armed != types.ArmStateArmed {
		t.Errorf("Armed = %v, want Armed", hubChanges[0].Hub.Armed)
	}

	deviceChanges := drainDeviceChanges(c)
	if len(deviceChanges) != 1 || deviceChanges[0].Device.ID != "d1" {
		t.Fatalf("device changes = %+v, want one for d1", deviceChanges)
	}
	if deviceChanges[0].Added {
		t.Error("known device reported as Added")
	}
}

func TestProtectionWindowShieldsPushState(t *testing.T) {
	api := seedAPI()
	c, sched, clk := newTestCoordinator(api)
	c.Start()
	defer c.Stop()

	sched.fireAll()
	drainHubChanges(c)

	// Push says armed; the API still reports disarmed.
	armed := types.ArmStateArmed
	c.ApplyHubUpdate("h1", types.HubUpdate{Armed: &armed}, types.SourceSIA)
	if got := drainHubChanges(c); len(got) != 1 {
		t.Fatalf("push update emitted %d changes, want 1", len(got))
	}

	sched.fire(time.Hour) // poll inside the window
	if h, _ := c.Hub("h1"); h.Armed != types.ArmStateArmed {
		t.Errorf("Armed = %v inside protection window, want Armed", h.Armed)
	}
	if got := drainHubChanges(c); len(got) != 0 {
		t.Errorf("protected hub emitted changes: %+v", got)
	}

	// After expiry the poll is authoritative again.
	clk.Advance(types.SourceSIA.ProtectionDuration() + time.Second)
	sched.fireAll()
	if h, _ := c.Hub("h1"); h.Armed != types.ArmStateDisarmed {
		t.Errorf("Armed = %v after window expiry, want Disarmed", h.Armed)
	}
	if got := drainHubChanges(c); len(got) != 1 {
		t.Errorf("poll after expiry emitted %d changes, want 1", len(got))
	}
}

func TestDeviceProtectionWindow(t *testing.T) {
	api := seedAPI()
	c, sched, clk := newTestCoordinator(api)
	c.Start()
	defer c.Stop()

	sched.fireAll()
	drainDeviceChanges(c)

	online := false
	c.ApplyDeviceUpdate("h1", "d1", types.DeviceUpdate{Online: &online}, types.SourceQueue)
	drainDeviceChanges(c)

	// Queue pushes get the longer window: a poll 15s in still loses.
	clk.Advance(15 * time.Second)
	sched.fireAll()
	if d, _ := c.Device("h1", "d1"); d.Online {
		t.Error("poll overwrote device inside queue protection window")
	}

	clk.Advance(types.SourceQueue.ProtectionDuration())
	sched.fireAll()
	if d, _ := c.Device("h1", "d1"); !d.Online {
		t.Error("device not restored from poll after window expiry")
	}
}

func TestApplyDeviceUpdateMergesModel(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()
	sched.fireAll()

	c.ApplyDeviceUpdate("h1", "d1", types.DeviceUpdate{
		Model: map[string]interface{}{types.ModelKeyAlarm: true},
	}, types.SourceSSE)

	d, _ := c.Device("h1", "d1")
	if v, _ := d.Model.Bool(types.ModelKeyAlarm); !v {
		t.Error("merged key missing from model")
	}
	if v, _ := d.Model.Bool(types.ModelKeyReedClosed); !v {
		t.Error("pre-existing model key lost on merge")
	}
}

func TestRequestRefreshDebounces(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()
	sched.fireAll()
	before := api.callCount("GetHubs")

	c.RequestRefresh()
	c.RequestRefresh()
	c.RequestRefresh()

	// Only the debounce timer is short enough to fire here.
	if n := sched.fire(time.Second); n != 1 {
		t.Fatalf("fired %d timers, want 1 debounced refresh", n)
	}
	if got := api.callCount("GetHubs") - before; got != 1 {
		t.Errorf("refresh burst caused %d polls, want 1", got)
	}
}

func TestHandleAlarmArmsMatchingHub(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()
	sched.fireAll()
	drainHubChanges(c)

	// Account matches SIAAccount 001234 modulo leading zeros.
	c.HandleAlarm(types.AlarmEvent{Account: "1234", Type: types.AlarmTypeArm})
	if h, _ := c.Hub("h1"); h.Armed != types.ArmStateArmed {
		t.Errorf("Armed = %v after arm event, want Armed", h.Armed)
	}

	c.HandleAlarm(types.AlarmEvent{Account: "1234", Type: types.AlarmTypeNightArm})
	if h, _ := c.Hub("h1"); h.Armed != types.ArmStatePartiallyArmed {
		t.Errorf("Armed = %v after night arm, want PartiallyArmed", h.Armed)
	}

	c.HandleAlarm(types.AlarmEvent{Account: "1234", Type: types.AlarmTypeDisarm})
	if h, _ := c.Hub("h1"); h.Armed != types.ArmStateDisarmed {
		t.Errorf("Armed = %v after disarm, want Disarmed", h.Armed)
	}

	// Non-arming events leave state alone but still request a refresh.
	before := api.callCount("GetHubs")
	c.HandleAlarm(types.AlarmEvent{Account: "1234", Type: types.AlarmTypeAlarm})
	sched.fire(time.Second)
	if got := api.callCount("GetHubs") - before; got != 1 {
		t.Errorf("alarm event caused %d refresh polls, want 1", got)
	}
}

func TestPollErrorBackoffAndUnavailable(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()
	sched.fireAll()

	api.setHubsErr(&hub.APIError{Msg: "boom", StatusCode: 500})

	sched.fireAll()
	if got, want := sched.lastDelay(), c.policy.BackoffBase; got != want {
		t.Errorf("backoff after 1 failure = %v, want %v", got, want)
	}
	select {
	case <-c.Unavailable():
		t.Fatal("unavailable signaled after a single failure")
	default:
	}

	sched.fireAll()
	if got, want := sched.lastDelay(), 2*c.policy.BackoffBase; got != want {
		t.Errorf("backoff after 2 failures = %v, want %v", got, want)
	}
	select {
	case <-c.Unavailable():
	default:
		t.Fatal("unavailable not signaled at the threshold")
	}

	// Recovery resets the cadence.
	api.setHubsErr(nil)
	sched.fireAll()
	if got, want := sched.lastDelay(), c.policy.DisarmedInterval; got != want {
		t.Errorf("delay after recovery = %v, want %v", got, want)
	}
}

func TestAuthErrorTriggersRelogin(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()
	sched.fireAll()

	api.setHubsErr(&hub.AuthError{Msg: "session expired"})
	sched.fireAll()

	if got := api.callCount("Login"); got != 1 {
		t.Fatalf("Login called %d times, want 1", got)
	}
	if got, want := sched.lastDelay(), c.policy.AuthRetryDelay; got != want {
		t.Errorf("retry delay after re-login = %v, want %v", got, want)
	}

	// Re-login failure falls back to backoff.
	api.mu.Lock()
	api.loginErr = &hub.AuthError{Msg: "bad credentials"}
	api.mu.Unlock()
	sched.fireAll()
	if got := api.callCount("Login"); got != 2 {
		t.Errorf("Login called %d times, want 2", got)
	}
	if got := sched.lastDelay(); got == c.policy.AuthRetryDelay {
		t.Errorf("failed re-login rescheduled at auth retry delay %v, want backoff", got)
	}
}

func TestStaleDataTriggersRelogin(t *testing.T) {
	api := seedAPI()
	c, sched, clk := newTestCoordinator(api)
	c.Start()
	defer c.Stop()
	sched.fireAll()

	clk.Advance(c.policy.StaleAfter + time.Minute)
	api.setHubsErr(&hub.APIError{Msg: "timeout"})

	sched.fireAll() // first failure: plain backoff
	if got := api.callCount("Login"); got != 0 {
		t.Fatalf("re-login after a single failure, Login = %d", got)
	}
	sched.fireAll() // second failure with stale data
	if got := api.callCount("Login"); got != 1 {
		t.Errorf("Login called %d times with stale data, want 1", got)
	}
}

func TestBackoffDelayCaps(t *testing.T) {
	c, _, _ := newTestCoordinator(seedAPI())
	if got := c.backoffDelay(1); got != c.policy.BackoffBase {
		t.Errorf("backoffDelay(1) = %v, want %v", got, c.policy.BackoffBase)
	}
	if got := c.backoffDelay(3); got != 4*c.policy.BackoffBase {
		t.Errorf("backoffDelay(3) = %v, want %v", got, 4*c.policy.BackoffBase)
	}
	if got := c.backoffDelay(50); got != c.policy.BackoffMax {
		t.Errorf("backoffDelay(50) = %v, want max %v", got, c.policy.BackoffMax)
	}
}

func TestNextDelayFollowsArmState(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()

	sched.fireAll()
	if got, want := sched.lastDelay(), c.policy.DisarmedInterval; got != want {
		t.Errorf("disarmed delay = %v, want %v", got, want)
	}

	api.setArmed("h1", types.ArmStateArmed)
	sched.fireAll()
	if got, want := sched.lastDelay(), c.policy.ArmedInterval; got != want {
		t.Errorf("armed delay = %v, want %v", got, want)
	}

	api.setArmed("h1", types.ArmStateDisarmed)
	p := testPolicy()
	p.FastPoll = true
	c.Reconfigure(p)
	sched.fireAll()
	if got, want := sched.lastDelay(), p.FastPollInterval; got != want {
		t.Errorf("fast poll delay = %v, want %v", got, want)
	}
}

func TestArmCommandsRequestRefresh(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	defer c.Stop()
	sched.fireAll()
	before := api.callCount("GetHubs")

	if err := c.Arm(context.Background(), "h1", types.ArmCommandArm); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if got := api.callCount("SetHubArming"); got != 1 {
		t.Errorf("SetHubArming = %d, want 1", got)
	}
	if err := c.ArmGroup(context.Background(), "h1", "g1", types.ArmCommandDisarm); err != nil {
		t.Fatalf("ArmGroup failed: %v", err)
	}
	if err := c.SendDeviceCommand(context.Background(), "h1", "d1", "identify", "doorwindow"); err != nil {
		t.Fatalf("SendDeviceCommand failed: %v", err)
	}
	if got := api.callCount("SendDeviceCommand"); got != 1 {
		t.Errorf("SendDeviceCommand = %d, want 1", got)
	}
	sched.fire(time.Second)
	if got := api.callCount("GetHubs") - before; got != 1 {
		t.Errorf("commands caused %d polls, want 1 debounced", got)
	}
}

func TestSetSnapshotSeedsWithoutProtection(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)

	c.SetSnapshot(map[string]types.HubState{
		"h1": {
			Hub:     types.Hub{ID: "h1", Name: "Home", Armed: types.ArmStateArmed},
			Devices: map[string]types.Device{"d1": {ID: "d1", HubID: "h1", Name: "Front Door"}},
		},
	})

	if h, ok := c.Hub("h1"); !ok || h.Armed != types.ArmStateArmed {
		t.Fatalf("seeded hub = %+v %v", h, ok)
	}

	// First poll is authoritative over the warm-start data.
	c.Start()
	defer c.Stop()
	sched.fireAll()
	if h, _ := c.Hub("h1"); h.Armed != types.ArmStateDisarmed {
		t.Errorf("Armed = %v after first poll, want Disarmed from upstream", h.Armed)
	}
	changes := drainHubChanges(c)
	if len(changes) != 1 || !changes[0].StateChanged {
		t.Errorf("hub changes over warm start = %+v, want one state change", changes)
	}
}

func TestStopCancelsTimers(t *testing.T) {
	api := seedAPI()
	c, sched, _ := newTestCoordinator(api)
	c.Start()
	sched.fireAll()
	before := api.callCount("GetHubs")

	c.Stop()
	if n := sched.fireAll(); n != 0 {
		t.Errorf("fired %d timers after Stop, want 0", n)
	}
	if got := api.callCount("GetHubs"); got != before {
		t.Errorf("poll ran after Stop")
	}
}
