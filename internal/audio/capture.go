// Package audio wraps the ASIO capture device used to feed a live audio
// stream into a decoder.Decoder. Grounded on pkg/device/asio.go's
// ASIOMono, adapted to a receive-only role: the callback's output buffer is
// left untouched, and each incoming int32 sample is converted to the
// float64 range the DSP chain expects before being handed to a sink.
package audio

import (
	"math"

	"github.com/xsjk/go-asio"
)

// Capture streams one input channel of an ASIO device as float64 samples.
type Capture struct {
	DeviceName string
	SampleRate float64
	Channel    int

	device asio.Device
}

// Start opens the device and begins streaming. sink is called once per
// input sample, on the ASIO callback thread; it must not block.
func (c *Capture) Start(sink func(sample float64)) {
	c.device.Load(c.DeviceName)
	c.device.SetSampleRate(c.SampleRate)
	c.device.Open()
	c.device.Start(func(in, out [][]int32) {
		for _, v := range in[c.Channel] {
			sink(float64(v) / math.MaxInt32)
		}
	})
}

// Stop halts streaming and releases the device.
func (c *Capture) Stop() {
	c.device.Stop()
	c.device.Close()
	c.device.Unload()
}
