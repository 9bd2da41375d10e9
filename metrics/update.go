package metrics

import "sync/atomic"

// SyncMetrics are the live counters behind the progress line.
type SyncMetrics struct {
	Total      atomic.Int32
	Processed  atomic.Int32
	Successful atomic.Int32
	Failed     atomic.Int32
}

func (m *SyncMetrics) Reset(total int) {
	m.Total.Store(int32(total))
	m.Processed.Store(0)
	m.Successful.Store(0)
	m.Failed.Store(0)
}
