package acquire

import (
	"github.com/gmlink/gmlink/control"
	"github.com/gmlink/gmlink/link"
)

// Consumer receives the output of the acquisition pipeline. Callbacks run on
// the scheduler goroutine and must return quickly; a slow consumer delays
// delivery, not reception.
type Consumer interface {
	// OnBatch delivers the events drained in one scheduler tick, in
	// sequence order. The slice is reused; copy it to retain it.
	OnBatch(events []link.Event)

	// OnOverflow reports how many events were dropped since the previous
	// tick. It is called at most once per tick, and only after a drop.
	OnOverflow(dropped uint64)

	// OnStatusChange reports a device state transition along with the
	// latest status snapshot.
	OnStatusChange(state control.State, status control.DeviceStatus)
}
