//go:build !cgo

// ABOUTME: Reports cgo availability to the store tests
// ABOUTME: Without cgo the mattn driver registers but fails on first use

package store

const cgoEnabled = false
