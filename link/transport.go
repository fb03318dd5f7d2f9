package link

// Transport is the byte channel the Conn protocol loop drives.
//
// ReadAvailable returns whatever bytes are currently buffered without
// blocking for more; it returns (0, nil) when nothing is pending. A transport
// that has been lost returns an error wrapping ErrTransportLost from both
// ReadAvailable and Write.
//
// Implementations live outside this package; see the serialport package for
// the serial adapter used with real hardware.
type Transport interface {
	// ReadAvailable fills p with pending bytes and returns how many were read.
	ReadAvailable(p []byte) (int, error)
	// Write sends p in full or returns an error.
	Write(p []byte) (int, error)
	// Close releases the underlying channel.
	Close() error
}
