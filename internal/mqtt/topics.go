package mqtt

import (
	"fmt"

	"github.com/alarmbridge/sia2mqtt/internal/types"
	"github.com/alarmbridge/sia2mqtt/internal/util"
)

type Topics struct {
	prefix string
}

func NewTopics(prefix string) *Topics {
	return &Topics{prefix: prefix}
}

func (t *Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix)
}

func (t *Topics) Hub(h types.Hub) string {
	return fmt.Sprintf("%s/hub/%s", t.prefix, util.Slugify(h.Name))
}

func (t *Topics) HubCommand(h types.Hub) string {
	return fmt.Sprintf("%s/hub/%s/command", t.prefix, util.Slugify(h.Name))
}

func (t *Topics) Device(d types.Device) string {
	return fmt.Sprintf("%s/device/%s", t.prefix, util.Slugify(d.Name))
}

func (t *Topics) Group(g types.Group) string {
	return fmt.Sprintf("%s/group/%s", t.prefix, util.Slugify(g.Name))
}

func (t *Topics) GroupCommand(g types.Group) string {
	return fmt.Sprintf("%s/group/%s/command", t.prefix, util.Slugify(g.Name))
}

func (t *Topics) Event() string {
	return fmt.Sprintf("%s/event", t.prefix)
}

func (t *Topics) Heartbeat() string {
	return fmt.Sprintf("%s/heartbeat", t.prefix)
}
