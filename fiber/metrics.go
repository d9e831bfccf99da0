package fiber

import "sync"

// psquare implements Jain & Chlamtac's P² algorithm for streaming
// quantile estimation in O(1) time/space per observation, grounded on the
// teacher's psquare.go. schedulerMetrics keeps a p50 and a p99 estimator
// for ready-queue latency; nothing in the Scheduler feeds them samples
// (observeReadyLatencyNanos has no caller), so both report 0.
type psquare struct {
	p          float64
	n          [5]int
	nDesired   [5]float64
	dn         [5]float64
	q          [5]float64
	count      int
	initialObs [5]float64
}

func newPSquare(p float64) *psquare {
	s := &psquare{p: p}
	s.dn = [5]float64{0, p / 2, p, (1 + p) / 2, 1}
	return s
}

func (s *psquare) observe(x float64) {
	s.count++
	if s.count <= 5 {
		s.initialObs[s.count-1] = x
		if s.count == 5 {
			for i := 0; i < 5; i++ {
				for j := i + 1; j < 5; j++ {
					if s.initialObs[j] < s.initialObs[i] {
						s.initialObs[i], s.initialObs[j] = s.initialObs[j], s.initialObs[i]
					}
				}
			}
			copy(s.q[:], s.initialObs[:])
			for i := 0; i < 5; i++ {
				s.n[i] = i + 1
			}
			s.nDesired = [5]float64{1, 1 + 2*s.p, 1 + 4*s.p, 3 + 2*s.p, 5}
		}
		return
	}

	var k int
	switch {
	case x < s.q[0]:
		s.q[0] = x
		k = 0
	case x >= s.q[4]:
		s.q[4] = x
		k = 3
	default:
		k = 3
		for i := 0; i < 4; i++ {
			if x < s.q[i+1] {
				k = i
				break
			}
		}
	}
	for i := k + 1; i < 5; i++ {
		s.n[i]++
	}
	for i := 0; i < 5; i++ {
		s.nDesired[i] += s.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := s.nDesired[i] - float64(s.n[i])
		if (d >= 1 && s.n[i+1]-s.n[i] > 1) || (d <= -1 && s.n[i-1]-s.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qNew := s.parabolic(i, sign)
			if s.q[i-1] < qNew && qNew < s.q[i+1] {
				s.q[i] = qNew
			} else {
				s.q[i] = s.linear(i, sign)
			}
			s.n[i] += sign
		}
	}
}

func (s *psquare) parabolic(i, d int) float64 {
	fd := float64(d)
	return s.q[i] + fd/float64(s.n[i+1]-s.n[i-1])*
		((float64(s.n[i]-s.n[i-1])+fd)*(s.q[i+1]-s.q[i])/float64(s.n[i+1]-s.n[i])+
			(float64(s.n[i+1]-s.n[i])-fd)*(s.q[i]-s.q[i-1])/float64(s.n[i]-s.n[i-1]))
}

func (s *psquare) linear(i, d int) float64 {
	return s.q[i] + float64(d)*(s.q[i+d]-s.q[i])/float64(s.n[i+d]-s.n[i])
}

func (s *psquare) value() float64 {
	if s.count == 0 {
		return 0
	}
	if s.count < 5 {
		return s.initialObs[(s.count-1)/2]
	}
	return s.q[2]
}

// schedulerMetrics aggregates the optional, opt-in metrics a Scheduler
// tracks when constructed WithMetrics(true).
type schedulerMetrics struct {
	mu          sync.Mutex
	readyLatP50 *psquare
	readyLatP99 *psquare
	tasksSpawn  uint64
	tasksFinish uint64
	loopTurns   uint64
}

func newSchedulerMetrics() *schedulerMetrics {
	return &schedulerMetrics{
		readyLatP50: newPSquare(0.5),
		readyLatP99: newPSquare(0.99),
	}
}

func (m *schedulerMetrics) observeReadyLatencyNanos(ns float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readyLatP50.observe(ns)
	m.readyLatP99.observe(ns)
}

// MetricsSnapshot is a point-in-time read of a Scheduler's optional
// metrics, returned by Scheduler.Metrics: tasks spawned and finished, the
// loop-turn counter, and the p50/p99 ready-latency estimates (0 while no
// latency samples are recorded). It carries no ready-queue depth or
// timer-set size.
type MetricsSnapshot struct {
	TasksSpawned        uint64
	TasksFinished       uint64
	LoopTurns           uint64
	ReadyLatencyP50Nano float64
	ReadyLatencyP99Nano float64
}

func (m *schedulerMetrics) snapshot(spawned, finished, turns uint64) MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		TasksSpawned:        spawned,
		TasksFinished:       finished,
		LoopTurns:           turns,
		ReadyLatencyP50Nano: m.readyLatP50.value(),
		ReadyLatencyP99Nano: m.readyLatP99.value(),
	}
}
