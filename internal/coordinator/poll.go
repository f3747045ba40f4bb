package coordinator

import (
	"context"
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/hub"
	"github.com/alarmbridge/sia2mqtt/internal/types"
	"github.com/alarmbridge/sia2mqtt/internal/util"
)

const pollTimeout = 60 * time.Second

func (c *Coordinator) schedulePollLocked(d time.Duration) {
	if c.pollTimer != nil {
		c.pollTimer.Cancel()
	}
	c.pollTimer = c.sched.After(d, c.poll)
}

// poll runs one cycle: fetch, merge, reschedule. Errors never stop the loop;
// they reschedule with backoff.
func (c *Coordinator) poll() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.pollTimer = nil
	full := c.pollCount == 0 || (c.policy.FullPollEvery > 0 && c.pollCount%c.policy.FullPollEvery == 0)
	c.pollCount++
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	if err := c.pollOnce(ctx, full); err != nil {
		c.handlePollError(ctx, err)
		return
	}

	c.mu.Lock()
	c.consecutiveErrors = 0
	c.lastSuccess = c.now()
	delay := c.nextDelayLocked()
	if c.running {
		c.schedulePollLocked(delay)
	}
	c.mu.Unlock()
	c.log.Debug("Poll complete, next in %v", delay)
}

// pollOnce fetches a fresh snapshot and merges it into the cached state.
// Devices are fetched every cycle; rooms, groups and hub detail only on a
// full poll to bound request volume. Hubs are polled sequentially: the
// shared backend is rate limited.
func (c *Coordinator) pollOnce(ctx context.Context, full bool) error {
	hubs, err := c.api.GetHubs(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[string]*bundle, len(hubs))
	for _, h := range hubs {
		b := &bundle{
			hub:     h,
			devices: make(map[string]types.Device),
			groups:  make(map[string]types.Group),
			rooms:   make(map[string]types.Room),
		}

		if full {
			if detail, err := c.api.GetHub(ctx, h.ID); err != nil {
				return err
			} else if detail != nil {
				b.hub = *detail
			}
			rooms, err := c.api.GetRooms(ctx, h.ID)
			if err != nil {
				return err
			}
			for _, r := range rooms {
				r.Name = util.Normalize(r.Name)
				b.rooms[r.ID] = r
			}
			groups, err := c.api.GetGroups(ctx, h.ID)
			if err != nil {
				return err
			}
			for _, g := range groups {
				b.groups[g.ID] = g
			}
		} else {
			// Rarely-changing metadata is reused from the cache between
			// full polls.
			c.mu.Lock()
			if old, ok := c.state[h.ID]; ok {
				for k, r := range old.rooms {
					b.rooms[k] = r
				}
				for k, g := range old.groups {
					b.groups[k] = g
				}
			}
			c.mu.Unlock()
		}

		devices, err := c.api.GetDevices(ctx, h.ID)
		if err != nil {
			return err
		}
		for _, d := range devices {
			d.Name = util.Normalize(d.Name)
			if room, ok := b.rooms[d.RoomID]; ok {
				d.RoomName = room.Name
			}
			b.devices[d.ID] = d
		}

		fresh[h.ID] = b
	}

	c.applySnapshot(fresh)
	return nil
}

// applySnapshot diffs the fresh snapshot against the cache, skipping
// entities inside their protection window, swaps the cache and emits one
// notification per detected change. Hub-level changes are detected before
// device and group changes for that hub.
func (c *Coordinator) applySnapshot(fresh map[string]*bundle) {
	var hubChanges []HubChange
	var deviceChanges []DeviceChange
	var groupChanges []GroupChange

	c.mu.Lock()
	for hubID, nb := range fresh {
		ob, known := c.state[hubID]
		if !known {
			c.log.Info("Discovered hub %s (%s)", nb.hub.Name, hubID)
			hubChanges = append(hubChanges, HubChange{Hub: nb.hub, StateChanged: true, OnlineChanged: true})
			for _, d := range nb.devices {
				deviceChanges = append(deviceChanges, DeviceChange{Device: d, Added: true})
			}
			for _, g := range nb.groups {
				groupChanges = append(groupChanges, GroupChange{Group: g})
			}
			continue
		}

		if c.isProtectedLocked(hubKey(hubID)) {
			// Push-derived hub state wins until the window expires.
			nb.hub = ob.hub
		} else {
			stateChanged := hubStateChanged(ob.hub, nb.hub)
			onlineChanged := ob.hub.Online != nb.hub.Online
			if stateChanged || onlineChanged {
				hubChanges = append(hubChanges, HubChange{
					Hub:           nb.hub,
					StateChanged:  stateChanged,
					OnlineChanged: onlineChanged,
				})
			}
		}

		for id, nd := range nb.devices {
			od, seen := ob.devices[id]
			if !seen {
				deviceChanges = append(deviceChanges, DeviceChange{Device: nd, Added: true})
				continue
			}
			if c.isProtectedLocked(id) {
				nb.devices[id] = od
				continue
			}
			if deviceChanged(od, nd) {
				deviceChanges = append(deviceChanges, DeviceChange{Device: nd})
			}
		}

		for id, ng := range nb.groups {
			og, seen := ob.groups[id]
			if !seen {
				groupChanges = append(groupChanges, GroupChange{Group: ng})
				continue
			}
			if c.isProtectedLocked(groupKey(id)) {
				nb.groups[id] = og
				continue
			}
			if og.State != ng.State || og.NightMode != ng.NightMode {
				groupChanges = append(groupChanges, GroupChange{Group: ng})
			}
		}
	}

	for hubID := range c.state {
		if _, ok := fresh[hubID]; !ok {
			c.log.Info("Hub %s no longer present upstream, removing", hubID)
		}
	}
	c.state = fresh
	c.mu.Unlock()

	for _, ch := range hubChanges {
		c.emitHubChange(ch)
	}
	for _, ch := range deviceChanges {
		c.emitDeviceChange(ch)
	}
	for _, ch := range groupChanges {
		c.emitGroupChange(ch)
	}
}

func hubStateChanged(old, cur types.Hub) bool {
	return old.Name != cur.Name ||
		old.Armed != cur.Armed ||
		old.BatteryLow != cur.BatteryLow ||
		old.SignalLevel != cur.SignalLevel
}

// deviceChanged applies the fixed "meaningfully changed" field set. Room
// renames and free-form model keys outside the known set do not count.
func deviceChanged(old, cur types.Device) bool {
	return old.Online != cur.Online ||
		old.Tampered != cur.Tampered ||
		old.BatteryPercent != cur.BatteryPercent ||
		old.Temperature != cur.Temperature ||
		old.SignalLevel != cur.SignalLevel ||
		!old.Model.EqualKnown(cur.Model)
}

// nextDelayLocked computes the delay before the next poll from the policy:
// armed hubs poll faster, and fast-poll can shorten the disarmed cadence but
// never below the upstream-suggested minimum.
func (c *Coordinator) nextDelayLocked() time.Duration {
	armed := false
	for _, b := range c.state {
		if b.hub.Armed != types.ArmStateDisarmed {
			armed = true
			break
		}
	}

	delay := c.policy.DisarmedInterval
	if armed {
		delay = c.policy.ArmedInterval
	} else if c.policy.FastPoll && c.policy.FastPollInterval > 0 && c.policy.FastPollInterval < delay {
		delay = c.policy.FastPollInterval
	}
	if delay < c.policy.MinInterval {
		delay = c.policy.MinInterval
	}
	return delay
}

// handlePollError drives the recovery state machine. Authentication errors
// re-login immediately; generic errors back off exponentially; sustained
// failures with stale data also attempt a re-login, since an expired session
// doesn't always surface as an auth error.
func (c *Coordinator) handlePollError(ctx context.Context, err error) {
	c.mu.Lock()
	c.consecutiveErrors++
	errs := c.consecutiveErrors
	stale := !c.lastSuccess.IsZero() && c.now().Sub(c.lastSuccess) > c.policy.StaleAfter
	running := c.running
	c.mu.Unlock()
	if !running {
		return
	}

	if hub.IsAuthError(err) {
		c.log.Warning("Authentication failure during poll: %v", err)
		c.relogin(ctx)
		return
	}

	c.log.Error("Poll failed (%d consecutive): %v", errs, err)
	if errs == c.policy.UnavailableAfter {
		c.log.Warning("Hub API unavailable after %d consecutive failures", errs)
		c.emitUnavailable(err)
	}

	if stale && errs > 1 {
		c.log.Warning("Cached data is stale and errors persist, attempting re-login")
		c.relogin(ctx)
		return
	}

	delay := c.backoffDelay(errs)
	c.mu.Lock()
	if c.running {
		c.schedulePollLocked(delay)
	}
	c.mu.Unlock()
}

func (c *Coordinator) relogin(ctx context.Context) {
	if _, err := c.api.Login(ctx); err != nil {
		c.mu.Lock()
		errs := c.consecutiveErrors
		c.mu.Unlock()
		delay := c.backoffDelay(errs)
		c.log.Error("Re-login failed: %v, retrying in %v", err, delay)
		c.mu.Lock()
		if c.running {
			c.schedulePollLocked(delay)
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	delay := c.policy.AuthRetryDelay
	if c.running {
		c.schedulePollLocked(delay)
	}
	c.mu.Unlock()
	c.log.Info("Re-login successful, resuming polling in %v", delay)
}

func (c *Coordinator) backoffDelay(errs int) time.Duration {
	c.mu.Lock()
	base, max := c.policy.BackoffBase, c.policy.BackoffMax
	c.mu.Unlock()

	if errs > 10 {
		errs = 10
	}
	delay := base << uint(errs-1)
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}
