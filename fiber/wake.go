package fiber

// wakeSource lets another scheduler/thread interrupt this scheduler's
// blocking reactor.poll call when it has pushed work onto the dirty queue
// (spec §4.5). fd() returns -1 when the platform backend doesn't need an
// fd registered with the reactor to be interrupted (see wake_windows.go).
type wakeSource interface {
	fd() int
	signal() error
	drain()
	close() error
}
