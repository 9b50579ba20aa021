package spdif

import "time"

// SetDetectTimeout shortens the capture signal detection window so timeout paths run quickly in tests.
func SetDetectTimeout(c *Controller, d time.Duration) {
	c.detectTimeout = d
}
