// Package config loads the demo receiver's YAML configuration. Grounded on
// cmd/project2/task3/config/config.go: a nested yaml-tagged struct plus a
// single LoadConfig(filename) entry point, using gopkg.in/yaml.v3.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"qpskfw/pkg/decoder"
)

// Config bundles the audio device settings and decoder construction
// parameters cmd/qpskrecv needs to start a receive session.
type Config struct {
	Device struct {
		DeviceName string  `yaml:"device_name"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"device"`

	Decoder struct {
		SymbolRate   float64 `yaml:"symbol_rate"`
		PacketSize   int     `yaml:"packet_size"`
		BlockSize    int     `yaml:"block_size"`
		FifoCapacity int     `yaml:"fifo_capacity"`
		CRCSeed      uint32  `yaml:"crc_seed"`
		ECC          bool    `yaml:"ecc"`
	} `yaml:"decoder"`

	Output struct {
		Directory string `yaml:"directory"`
	} `yaml:"output"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DecoderConfig translates the YAML decoder section into a decoder.Config.
func (c *Config) DecoderConfig() decoder.Config {
	return decoder.Config{
		SampleRate:   c.Device.SampleRate,
		SymbolRate:   c.Decoder.SymbolRate,
		PacketSize:   c.Decoder.PacketSize,
		BlockSize:    c.Decoder.BlockSize,
		FifoCapacity: c.Decoder.FifoCapacity,
		CRCSeed:      c.Decoder.CRCSeed,
		ECC:          c.Decoder.ECC,
	}
}
