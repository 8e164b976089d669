package sensors

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// maxBatchSize bounds a single read from the sensor-manager device: the
// count word plus the largest batch DecodeBatch accepts.
const maxBatchSize = 4 + maxBatchEvents*wireEventSize

// FileDevice is the real sensor-manager device: a filesystem path opened
// read-write, with a control message declaring the desired sensor types
// written immediately after open. Each read returns one packed
// {count, events[count]} batch.
type FileDevice struct {
	f   *os.File
	buf []byte
}

// NewFileDevice returns an unopened device handle.
func NewFileDevice() *FileDevice {
	return &FileDevice{buf: make([]byte, maxBatchSize)}
}

// Open opens the device node and sends the control message: a 4-byte
// little-endian bitmask of the sensor types this client wants.
func (d *FileDevice) Open(path string, types Type) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("sensors: open device %s: %w", path, err)
	}

	ctl := make([]byte, 4)
	binary.LittleEndian.PutUint32(ctl, uint32(types))
	if _, err := f.Write(ctl); err != nil {
		f.Close()
		return fmt.Errorf("sensors: declare types on %s: %w", path, err)
	}

	d.f = f
	return nil
}

// ReadBatch blocks on the device until a batch is available and decodes
// it. There is no implicit timeout: a slow sensor stalls the caller.
func (d *FileDevice) ReadBatch() (Batch, error) {
	if d.f == nil {
		return Batch{}, fmt.Errorf("sensors: device not open")
	}

	n, err := d.f.Read(d.buf)
	if err != nil {
		return Batch{}, fmt.Errorf("sensors: device read: %w", err)
	}

	return DecodeBatch(bytes.NewReader(d.buf[:n]))
}

// Close closes the device node.
func (d *FileDevice) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
