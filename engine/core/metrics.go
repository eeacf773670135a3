package core

const AVG_COUNT uint8 = 30

// FrameMetrics keeps a rolling average of frame times and a frames per
// second counter. It is owned by whoever drives the frame loop.
type FrameMetrics struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64
	TotalFrames        uint64
	Barriers           uint64
	Passes             uint64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		MStimes: [AVG_COUNT]float64{0},
	}
}

// Update takes the elapsed frame time in seconds.
func (m *FrameMetrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := (frameElapsedTime * 1000.0)
	m.MStimes[m.FrameAVGCounter] = frameMS
	if m.FrameAVGCounter == AVG_COUNT-1 {
		m.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.MSavg += m.MStimes[i]
		}

		m.MSavg /= float64(AVG_COUNT)
	}
	m.FrameAVGCounter++
	m.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	m.AccumulatedFrameMS += frameMS
	if m.AccumulatedFrameMS > 1000 {
		m.FPS = float64(m.Frames)
		m.AccumulatedFrameMS -= 1000
		m.Frames = 0
	}

	// Count all Frames.
	m.Frames++
	m.TotalFrames++
}

// Record adds the work of one replayed plan.
func (m *FrameMetrics) Record(passes, barriers int) {
	m.Passes += uint64(passes)
	m.Barriers += uint64(barriers)
}

func (m *FrameMetrics) FPSValue() float64 {
	return m.FPS
}

func (m *FrameMetrics) FrameTime() float64 {
	return m.MSavg
}

func (m *FrameMetrics) Frame() (float64, float64) {
	return m.FPS, m.MSavg
}
