// errors.go - the Os{NtStatus} leg of the error taxonomy (§7). The fake
// engine reports every failed VM primitive as this typed error. The
// Windows engine wraps the underlying syscall error with fmt.Errorf
// instead, and returns NtStatusError only for a short
// WriteProcessMemory, with Status holding the byte count written.

package winapi

import "fmt"

// NtStatusError wraps a failed OS call with the status/error code the
// kernel or Win32 layer returned, and which operation failed.
type NtStatusError struct {
	Op     string
	Status uint32
}

func (e *NtStatusError) Error() string {
	return fmt.Sprintf("metalbones/winapi: %s failed: status=%#08x", e.Op, e.Status)
}

func newStatusError(op string, status uint32) error {
	return &NtStatusError{Op: op, Status: status}
}
