package stage

// Health reports whether a pipeline stage can currently process jobs.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks a stage as ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks a stage as not ready, with a reason.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
