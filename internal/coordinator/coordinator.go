package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/hub"
	"github.com/alarmbridge/sia2mqtt/internal/log"
	"github.com/alarmbridge/sia2mqtt/internal/types"
	"github.com/alarmbridge/sia2mqtt/internal/util"
)

// HubChange notifies a changed hub record.
type HubChange struct {
	Hub           types.Hub
	StateChanged  bool
	OnlineChanged bool
}

// DeviceChange notifies a changed or newly discovered device.
type DeviceChange struct {
	Device types.Device
	Added  bool
}

// GroupChange notifies a changed group.
type GroupChange struct {
	Group types.Group
}

type bundle struct {
	hub     types.Hub
	devices map[string]types.Device
	groups  map[string]types.Group
	rooms   map[string]types.Room
}

// Coordinator owns the canonical in-memory state for all hubs. It merges
// polled snapshots with push-derived partial updates, using time-boxed
// protection windows so a fresh push value is never clobbered by a racing,
// staler poll result.
type Coordinator struct {
	api   hub.API
	log   *log.Logger
	sched Scheduler

	mu                sync.Mutex
	policy            Policy
	state             map[string]*bundle
	protection        map[string]time.Time
	lastSuccess       time.Time
	pollCount         int
	consecutiveErrors int
	running           bool
	pollTimer         TimerHandle
	debounceTimer     TimerHandle

	// now is the clock used for protection windows; replaced in tests.
	now func() time.Time

	hubChanges    chan HubChange
	deviceChanges chan DeviceChange
	groupChanges  chan GroupChange
	unavailable   chan error
}

func New(api hub.API, policy Policy, sched Scheduler, logger *log.Logger) *Coordinator {
	return &Coordinator{
		api:           api,
		log:           logger,
		sched:         sched,
		policy:        policy,
		state:         make(map[string]*bundle),
		protection:    make(map[string]time.Time),
		now:           time.Now,
		hubChanges:    make(chan HubChange, 64),
		deviceChanges: make(chan DeviceChange, 64),
		groupChanges:  make(chan GroupChange, 64),
		unavailable:   make(chan error, 4),
	}
}

// Start schedules the first poll immediately.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.schedulePollLocked(0)
	c.mu.Unlock()
	c.log.Info("Coordinator started")
}

// Stop cancels all pending timers. In-flight polls finish but reschedule
// nothing.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.running = false
	if c.pollTimer != nil {
		c.pollTimer.Cancel()
		c.pollTimer = nil
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Cancel()
		c.debounceTimer = nil
	}
	c.mu.Unlock()
	c.log.Info("Coordinator stopped")
}

// Reconfigure swaps the polling policy at runtime. The new cadence takes
// effect from the next scheduled poll.
func (c *Coordinator) Reconfigure(policy Policy) {
	c.mu.Lock()
	c.policy = policy
	c.mu.Unlock()
	c.log.Debug("Polling policy reconfigured")
}

// HubChanges delivers hub state/online change notifications.
func (c *Coordinator) HubChanges() <-chan HubChange {
	return c.hubChanges
}

// DeviceChanges delivers device change and device-added notifications.
func (c *Coordinator) DeviceChanges() <-chan DeviceChange {
	return c.deviceChanges
}

// GroupChanges delivers group state/night-mode change notifications.
func (c *Coordinator) GroupChanges() <-chan GroupChange {
	return c.groupChanges
}

// Unavailable signals sustained consecutive poll failures. Informational:
// polling keeps going.
func (c *Coordinator) Unavailable() <-chan error {
	return c.unavailable
}

// RequestRefresh asks for an immediate poll. Bursts of requests inside the
// debounce window collapse into a single poll.
func (c *Coordinator) RequestRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Cancel()
	}
	c.debounceTimer = c.sched.After(c.policy.DebounceWindow, func() {
		c.mu.Lock()
		c.debounceTimer = nil
		if c.pollTimer != nil {
			c.pollTimer.Cancel()
			c.pollTimer = nil
		}
		running := c.running
		c.mu.Unlock()
		if running {
			c.poll()
		}
	})
}

// ApplyHubUpdate merges push-derived hub fields and protects the hub from
// the next poll cycle.
func (c *Coordinator) ApplyHubUpdate(hubID string, u types.HubUpdate, src types.PushSource) {
	c.mu.Lock()
	b, ok := c.state[hubID]
	if !ok {
		c.mu.Unlock()
		c.log.Debug("Push update for unknown hub %s ignored", hubID)
		return
	}
	if u.Name != nil {
		b.hub.Name = *u.Name
	}
	if u.Online != nil {
		b.hub.Online = *u.Online
	}
	if u.Armed != nil {
		b.hub.Armed = *u.Armed
	}
	if u.BatteryLow != nil {
		b.hub.BatteryLow = *u.BatteryLow
	}
	if u.SignalLevel != nil {
		b.hub.SignalLevel = *u.SignalLevel
	}
	c.protection[hubKey(hubID)] = c.now().Add(src.ProtectionDuration())
	changed := b.hub
	c.mu.Unlock()

	c.emitHubChange(HubChange{Hub: changed, StateChanged: true, OnlineChanged: u.Online != nil})
}

// ApplyDeviceUpdate merges push-derived device fields. The model sub-map is
// merged key-by-key rather than replaced wholesale.
func (c *Coordinator) ApplyDeviceUpdate(hubID, deviceID string, u types.DeviceUpdate, src types.PushSource) {
	c.mu.Lock()
	b, ok := c.state[hubID]
	if !ok {
		c.mu.Unlock()
		c.log.Debug("Push update for unknown hub %s ignored", hubID)
		return
	}
	d, ok := b.devices[deviceID]
	if !ok {
		c.mu.Unlock()
		c.log.Debug("Push update for unknown device %s ignored", deviceID)
		return
	}
	if u.Name != nil {
		d.Name = *u.Name
	}
	if u.Online != nil {
		d.Online = *u.Online
	}
	if u.Tampered != nil {
		d.Tampered = *u.Tampered
	}
	if u.BatteryPercent != nil {
		d.BatteryPercent = *u.BatteryPercent
	}
	if u.Temperature != nil {
		d.Temperature = *u.Temperature
	}
	if u.SignalLevel != nil {
		d.SignalLevel = *u.SignalLevel
	}
	if u.Model != nil {
		d.Model = d.Model.Merge(u.Model)
	}
	b.devices[deviceID] = d
	c.protection[deviceID] = c.now().Add(src.ProtectionDuration())
	c.mu.Unlock()

	c.emitDeviceChange(DeviceChange{Device: d})
}

// ApplyGroupUpdate merges push-derived group fields.
func (c *Coordinator) ApplyGroupUpdate(hubID, groupID string, u types.GroupUpdate, src types.PushSource) {
	c.mu.Lock()
	b, ok := c.state[hubID]
	if !ok {
		c.mu.Unlock()
		c.log.Debug("Push update for unknown hub %s ignored", hubID)
		return
	}
	g, ok := b.groups[groupID]
	if !ok {
		c.mu.Unlock()
		c.log.Debug("Push update for unknown group %s ignored", groupID)
		return
	}
	if u.Name != nil {
		g.Name = *u.Name
	}
	if u.State != nil {
		g.State = *u.State
	}
	if u.NightMode != nil {
		g.NightMode = *u.NightMode
	}
	b.groups[groupID] = g
	c.protection[groupKey(groupID)] = c.now().Add(src.ProtectionDuration())
	c.mu.Unlock()

	c.emitGroupChange(GroupChange{Group: g})
}

// HandleAlarm routes a decoded SIA event into the state model. Arming events
// update the matching hub directly under a short protection window; every
// event also triggers a debounced refresh so the next poll picks up whatever
// else changed on the panel.
func (c *Coordinator) HandleAlarm(ev types.AlarmEvent) {
	hubID := c.hubIDForAccount(ev.Account)
	if hubID != "" {
		switch ev.Type {
		case types.AlarmTypeArm, types.AlarmTypeGroupArm:
			armed := types.ArmStateArmed
			c.ApplyHubUpdate(hubID, types.HubUpdate{Armed: &armed}, types.SourceSIA)
		case types.AlarmTypeDisarm, types.AlarmTypeGroupDisarm:
			armed := types.ArmStateDisarmed
			c.ApplyHubUpdate(hubID, types.HubUpdate{Armed: &armed}, types.SourceSIA)
		case types.AlarmTypeNightArm, types.AlarmTypeNightArmWithFaults:
			armed := types.ArmStatePartiallyArmed
			c.ApplyHubUpdate(hubID, types.HubUpdate{Armed: &armed}, types.SourceSIA)
		}
	}
	c.RequestRefresh()
}

func (c *Coordinator) hubIDForAccount(account string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, b := range c.state {
		if b.hub.SIAAccount != "" &&
			util.StripLeadingZeros(b.hub.SIAAccount) == util.StripLeadingZeros(account) {
			return id
		}
	}
	if len(c.state) == 1 {
		for id := range c.state {
			return id
		}
	}
	return ""
}

// Arm sends an arming command upstream and requests a refresh so the result
// lands quickly.
func (c *Coordinator) Arm(ctx context.Context, hubID string, cmd types.ArmCommand) error {
	if err := c.api.SetHubArming(ctx, hubID, cmd); err != nil {
		return fmt.Errorf("failed to send %s to hub %s: %v", cmd, hubID, err)
	}
	c.RequestRefresh()
	return nil
}

func (c *Coordinator) ArmGroup(ctx context.Context, hubID, groupID string, cmd types.ArmCommand) error {
	if err := c.api.SetGroupArming(ctx, hubID, groupID, cmd); err != nil {
		return fmt.Errorf("failed to send %s to group %s: %v", cmd, groupID, err)
	}
	c.RequestRefresh()
	return nil
}

func (c *Coordinator) SendDeviceCommand(ctx context.Context, hubID, deviceID, command, deviceType string) error {
	if err := c.api.SendDeviceCommand(ctx, hubID, deviceID, command, deviceType); err != nil {
		return fmt.Errorf("failed to send %s to device %s: %v", command, deviceID, err)
	}
	c.RequestRefresh()
	return nil
}

// Hub returns a copy of the cached hub record.
func (c *Coordinator) Hub(hubID string) (types.Hub, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.state[hubID]
	if !ok {
		return types.Hub{}, false
	}
	return b.hub, true
}

// Device returns a copy of the cached device record.
func (c *Coordinator) Device(hubID, deviceID string) (types.Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.state[hubID]
	if !ok {
		return types.Device{}, false
	}
	d, ok := b.devices[deviceID]
	if !ok {
		return types.Device{}, false
	}
	d.Model = d.Model.Clone()
	return d, true
}

// Group returns a copy of the cached group record.
func (c *Coordinator) Group(hubID, groupID string) (types.Group, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.state[hubID]
	if !ok {
		return types.Group{}, false
	}
	g, ok := b.groups[groupID]
	return g, ok
}

// Snapshot returns a point-in-time copy of the whole state.
func (c *Coordinator) Snapshot() map[string]types.HubState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]types.HubState, len(c.state))
	for id, b := range c.state {
		out[id] = b.toHubState()
	}
	return out
}

// SetSnapshot seeds the state, e.g. from a warm-start cache. Entities loaded
// this way get no protection; the first poll remains authoritative.
func (c *Coordinator) SetSnapshot(snap map[string]types.HubState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = make(map[string]*bundle, len(snap))
	for id, hs := range snap {
		c.state[id] = bundleFromHubState(hs)
	}
}

// LastUpdate returns the time of the last successful poll.
func (c *Coordinator) LastUpdate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

// isProtectedLocked checks the protection window for an entity key, lazily
// removing expired entries.
func (c *Coordinator) isProtectedLocked(key string) bool {
	exp, ok := c.protection[key]
	if !ok {
		return false
	}
	if c.now().Before(exp) {
		return true
	}
	delete(c.protection, key)
	return false
}

func hubKey(hubID string) string {
	return "hub_" + hubID
}

func groupKey(groupID string) string {
	return "group_" + groupID
}

func (b *bundle) toHubState() types.HubState {
	hs := types.HubState{
		Hub:     b.hub,
		Devices: make(map[string]types.Device, len(b.devices)),
		Groups:  make(map[string]types.Group, len(b.groups)),
		Rooms:   make(map[string]types.Room, len(b.rooms)),
	}
	for k, d := range b.devices {
		d.Model = d.Model.Clone()
		hs.Devices[k] = d
	}
	for k, g := range b.groups {
		hs.Groups[k] = g
	}
	for k, r := range b.rooms {
		hs.Rooms[k] = r
	}
	return hs
}

func bundleFromHubState(hs types.HubState) *bundle {
	b := &bundle{
		hub:     hs.Hub,
		devices: make(map[string]types.Device, len(hs.Devices)),
		groups:  make(map[string]types.Group, len(hs.Groups)),
		rooms:   make(map[string]types.Room, len(hs.Rooms)),
	}
	for k, d := range hs.Devices {
		b.devices[k] = d
	}
	for k, g := range hs.Groups {
		b.groups[k] = g
	}
	for k, r := range hs.Rooms {
		b.rooms[k] = r
	}
	return b
}

func (c *Coordinator) emitHubChange(ch HubChange) {
	select {
	case c.hubChanges <- ch:
	default:
		c.log.Warning("Hub change channel full, dropping notification for %s", ch.Hub.ID)
	}
}

func (c *Coordinator) emitDeviceChange(ch DeviceChange) {
	select {
	case c.deviceChanges <- ch:
	default:
		c.log.Warning("Device change channel full, dropping notification for %s", ch.Device.ID)
	}
}

func (c *Coordinator) emitGroupChange(ch GroupChange) {
	select {
	case c.groupChanges <- ch:
	default:
		c.log.Warning("Group change channel full, dropping notification for %s", ch.Group.ID)
	}
}

func (c *Coordinator) emitUnavailable(err error) {
	select {
	case c.unavailable <- err:
	default:
	}
}
