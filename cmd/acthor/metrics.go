package main

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zberg/go-acthor/pkg/acthor"
)

var (
	metricPower = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "acthor_power_watts",
		Help: "Measured power consumption of the heating element.",
	})
	metricPowerTarget = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "acthor_power_target_watts",
		Help: "Arbitrated power setpoint written to the device.",
	})
	metricPowerExcess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "acthor_power_excess_watts",
		Help: "Externally supplied surplus power.",
	})
	metricStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "acthor_status_code",
		Help: "Raw device status code (0 off, 1-8 starting, 9-199 on, >=200 error).",
	})
	metricRelay = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "acthor_relay1_state",
		Help: "State of relay 1 (0 open, 1 closed).",
	})
	metricAvailable = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "acthor_available",
		Help: "Whether the Modbus connection is alive.",
	})
	metricTemperature = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "acthor_temperature_celsius",
		Help: "Temperature sensor readings.",
	}, []string{"sensor"})
)

func registerMetrics() {
	prometheus.MustRegister(
		metricPower,
		metricPowerTarget,
		metricPowerExcess,
		metricStatus,
		metricRelay,
		metricAvailable,
		metricTemperature,
	)
}

// updateMetrics publishes the controller's snapshot. Called from the
// after_update event.
func updateMetrics(device *acthor.Device) {
	if power, ok := device.Power(); ok {
		metricPower.Set(float64(power))
	}
	metricPowerTarget.Set(float64(device.PowerTarget()))
	metricPowerExcess.Set(float64(device.PowerExcess()))

	if status, ok := device.Status(); ok {
		metricStatus.Set(float64(status))
	}

	if device.Relay1Status() {
		metricRelay.Set(1)
	} else {
		metricRelay.Set(0)
	}

	if device.Available() {
		metricAvailable.Set(1)
	} else {
		metricAvailable.Set(0)
	}

	metricTemperature.Reset()
	for sensor, temp := range device.Temperatures() {
		metricTemperature.WithLabelValues(strconv.Itoa(sensor)).Set(temp)
	}
}
