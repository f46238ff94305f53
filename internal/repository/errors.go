// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers to distinguish
// between different failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a duplicate table number in a restaurant.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a restaurant, table or reservation row
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrSlotTaken is returned when a write would place a second occupying
// reservation on the same table at the same date and time. Stores enforce
// this with a uniqueness rule so that it holds under concurrent writers.
var ErrSlotTaken = errors.New("table already booked for this slot")

// ErrNoChange indicates an update carried no fields to write.
var ErrNoChange = errors.New("no change")

// ErrStaleState is returned when a conditional reservation write finds the
// row already terminal or changed since it was read.
var ErrStaleState = errors.New("reservation changed since it was read")
