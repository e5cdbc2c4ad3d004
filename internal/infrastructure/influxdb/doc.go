// Package influxdb writes Insteon time-series data to InfluxDB 2.x.
//
// It wraps influxdb-client-go v2 with the non-blocking, batched write API.
// Three measurements are written:
//   - insteon_device_state: level of a device after a command or report
//   - insteon_modem_traffic: one point per frame exchanged with the modem
//   - insteon_scheduler: one point per scheduler action, with its duration
//
// Write errors surface asynchronously through SetOnError. Connection and
// health check errors are returned directly.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WriteDeviceState("1a.2b.3c", "kitchen", 255)
package influxdb
