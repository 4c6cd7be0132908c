// Package identity defines the device identity model and its persistence boundary.
//
// An identity is one (email, deviceId) pair enrolled with the service. The normalized
// pair is unique across all records; a single email may appear once per device.
package identity
