package changes

import "time"

// timeNow stamps CreatedAt/UpdatedAt and seeds NextID. Tests pin it.
var timeNow = time.Now
