//go:build cgo

// ABOUTME: Reports cgo availability to the store tests
// ABOUTME: The mattn driver only works when the binary is built with cgo

package store

const cgoEnabled = true
