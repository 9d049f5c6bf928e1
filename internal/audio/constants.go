package audio

import "time"

// playbackBufferLen trades latency against underruns on slow devices.
const playbackBufferLen = 100 * time.Millisecond
