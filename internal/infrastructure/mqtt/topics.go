package mqtt

import "fmt"

// Topic roots.
const (
	TopicPrefix       = "graylogic"
	TopicPrefixSystem = "graylogic/system"
)

// Topics builds topic strings. The zero value is ready to use.
type Topics struct{}

// BridgeCommand is where commands for one device or group arrive.
func (Topics) BridgeCommand(protocol, target string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, target)
}

// BridgeAck carries the result of a command.
func (Topics) BridgeAck(protocol, target string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, target)
}

// BridgeState carries the retained state of one device.
func (Topics) BridgeState(protocol, target string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, target)
}

// BridgeHealth carries the bridge's periodic health report.
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// BridgeDiscovery carries the retained device list.
func (Topics) BridgeDiscovery(protocol string) string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, protocol)
}

// BridgeSchedule carries the retained scheduler queue.
func (Topics) BridgeSchedule(protocol string) string {
	return fmt.Sprintf("%s/schedule/%s", TopicPrefix, protocol)
}

// AllBridgeCommands matches every command for one protocol.
func (Topics) AllBridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, protocol)
}

// SystemStatus carries the retained online/offline status of a client.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
