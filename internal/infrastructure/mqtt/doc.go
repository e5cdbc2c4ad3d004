// Package mqtt connects the Insteon core to the Gray Logic MQTT broker.
//
// It wraps paho.mqtt.golang with:
//   - auto-reconnect, with subscriptions restored after every reconnect
//   - a retained last-will on graylogic/system/status so a crash is visible
//   - panic recovery around message handlers
//   - input validation on publish and subscribe
//
// Topics follow the flat Gray Logic scheme
// graylogic/{category}/{protocol}/{address}; see Topics.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.Subscribe(mqtt.Topics{}.AllBridgeCommands("insteon"), 1, handler)
package mqtt
