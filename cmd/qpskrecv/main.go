// Command qpskrecv is a demo receiver session: it loads a YAML config, opens
// an ASIO capture device, and feeds the captured samples into a
// decoder.Decoder, writing each completed block to a file in the configured
// output directory. Session-level events (carrier acquisition, block
// writes, decode errors) are logged with logrus rather than the
// internal/debug per-sample hook, which stays reserved for the DSP core.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"qpskfw/internal/audio"
	"qpskfw/internal/config"
	"qpskfw/pkg/decoder"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the receiver YAML config")
	verbose := flag.Bool("v", false, "enable logrus debug-level logging")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	d, err := decoder.New(cfg.DecoderConfig())
	if err != nil {
		log.Fatalf("constructing decoder: %v", err)
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
		log.Fatalf("creating output directory: %v", err)
	}

	capture := &audio.Capture{
		DeviceName: cfg.Device.DeviceName,
		SampleRate: cfg.Device.SampleRate,
	}

	log.WithFields(logrus.Fields{
		"device":      cfg.Device.DeviceName,
		"sample_rate": cfg.Device.SampleRate,
		"symbol_rate": cfg.Decoder.SymbolRate,
	}).Info("starting receive session")

	blockNum := 0
	capture.Start(func(sample float64) {
		if !d.Push(sample) {
			log.Warn("sample FIFO full, dropping sample")
		}
	})
	defer capture.Stop()

	for {
		switch res := d.Receive(0); res {
		case decoder.ResultNone:
			time.Sleep(time.Millisecond)
		case decoder.ResultPacketComplete:
			log.Debug("packet complete")
		case decoder.ResultBlockComplete:
			path := filepath.Join(cfg.Output.Directory, fmt.Sprintf("block_%04d.bin", blockNum))
			if err := os.WriteFile(path, d.Data(), 0o644); err != nil {
				log.WithError(err).Error("writing block to disk")
				d.Advance(false)
				return
			}
			log.WithFields(logrus.Fields{"block": blockNum, "bytes": len(d.Data()), "path": path}).Info("block written")
			blockNum++
			d.Advance(true)
		case decoder.ResultEnd:
			log.WithField("blocks", blockNum).Info("end of transmission")
			return
		case decoder.ResultError:
			log.WithError(d.Err()).Error("decoder entered an error state")
			return
		}
	}
}
