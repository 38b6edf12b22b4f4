package staleness

import "time"

// timeNow is swapped in tests to pin the scan date.
var timeNow = time.Now
