// Package security builds the posture report returned by
// Client.SecurityReport. It reads config values only and performs no I/O.
package security
