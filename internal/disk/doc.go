// Package disk measures filesystem usage of the paths node-janitor guards.
//
// Measurements come from github.com/shirou/gopsutil/v3/disk, which wraps
// statfs(2) on Linux. The used percentage is computed from used and total
// blocks and rounded up, so a filesystem that is 70.1% full reports 71%
// and trips a 71% threshold one cycle earlier rather than one cycle later.
package disk
