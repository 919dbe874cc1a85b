package social

import "github.com/prometheus/client_golang/prometheus"

// RegistrationsCounter exposes the registration counter to external tests.
func RegistrationsCounter(o RegisterOutcome) prometheus.Counter {
	return registrations.WithLabelValues(string(o))
}
