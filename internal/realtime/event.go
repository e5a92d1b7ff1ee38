package realtime

import (
	"encoding/json"

	"github.com/opsdesk/opsdesk/models"
)

// addressMode selects how an event's target sessions are resolved.
type addressMode int

const (
	modeUnicast addressMode = iota
	modeMulticast
	modeTopic
	modeRole
	modeBroadcast
)

// Address names the audience of an Event. Construct one with ToUser,
// ToUsers, ToTopic, ToRole or ToAll.
type Address struct {
	mode  addressMode
	user  string
	users []string
	topic string
	role  models.Role
}

// ToUser addresses every live session of a single user.
func ToUser(userID string) Address { return Address{mode: modeUnicast, user: userID} }

// ToUsers addresses every live session of each listed user.
func ToUsers(userIDs ...string) Address {
	return Address{mode: modeMulticast, users: userIDs}
}

// ToTopic addresses every session currently subscribed to topic.
func ToTopic(topic string) Address { return Address{mode: modeTopic, topic: topic} }

// ToRole addresses every session whose user holds role.
func ToRole(role models.Role) Address { return Address{mode: modeRole, role: role} }

// ToAll addresses every registered session.
func ToAll() Address { return Address{mode: modeBroadcast} }

// Event is an immutable notification of a state change. Producers build one
// per mutation and hand it to Hub.Deliver; they never touch sessions or
// indices directly.
type Event struct {
	Type string
	Data map[string]any
	To   Address
}

// NewEvent builds an event of the given type addressed to.
func NewEvent(eventType string, to Address, data map[string]any) Event {
	return Event{Type: eventType, Data: data, To: to}
}

// encode serialises the event to its wire form: a flat JSON object with a
// "type" field alongside the payload keys.
func (e Event) encode() ([]byte, error) {
	obj := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		obj[k] = v
	}
	obj["type"] = e.Type
	return json.Marshal(obj)
}
