// Package transition ramps PWM channels linearly from their current value
// to a target over a duration.
//
// # State Machine
//
// Each logical output (one channel, or three to four channels of an RGB(W)
// light) is either IDLE or RUNNING:
//
//	IDLE ──Start──► RUNNING ──last step──► IDLE
//	                   │
//	                   └──Start / Cancel──► (previous run cancelled)
//
// Start cancels any running transition of the same output before reading
// the begin values, so a superseded run never writes again. Steps run
// every 150 ms; the step at or after the end time writes the exact target.
//
// # Scheduling
//
// Steps are driven by a Scheduler. TickerScheduler uses one time.Ticker per
// transition; tests inject a scheduler with a manual clock.
package transition
