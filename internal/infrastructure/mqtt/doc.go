// Package mqtt provides MQTT client connectivity for Gray Logic Things.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained publishing of property state
//   - Subscriptions for property writes and driver readings
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The thing server and the sensor driver process never talk directly.
// The driver publishes raw readings; the server publishes committed property
// values and accepts writes on the set topics.
//
//	BME680 driver ──reading──▶ Broker ──reading──▶ Thing server
//	Dashboards   ◀──state──── Broker ◀──state───── Thing server
//	Dashboards   ───set─────▶ Broker ───set──────▶ Thing server
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllPropertySets(), 1,
//	    func(topic string, payload []byte) error {
//	        thingID, prop, _, _ := mqtt.ParsePropertyTopic(topic)
//	        log.Printf("write %s/%s = %s", thingID, prop, payload)
//	        return nil
//	    })
//
//	topic := mqtt.Topics{}.PropertyState("humidity-sensor", "level")
//	client.PublishJSON(topic, map[string]float64{"value": 48.2}, true)
package mqtt
