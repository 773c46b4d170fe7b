package ll

import (
	"os"

	"gopkg.in/yaml.v3"
)

// scaPPM is the sleep-clock-accuracy index -> ppm lookup table.
var scaPPM = [8]uint32{500, 250, 150, 100, 75, 50, 30, 20}

// Config mirrors radio_init's parameter list. Unlike the source, which reports residual bytes from
// a caller-supplied memory arena, Go allocates each pool up front; MemSize
// is kept only so a YAML config file can still express an advisory budget
// and ResidualBytes can report whether it was respected.
type Config struct {
	HFClockPPM  uint16 `yaml:"hf_clock_ppm"`
	SCA         uint8  `yaml:"sca"`
	MaxConn     uint8  `yaml:"max_conn"`
	RXCount     int    `yaml:"rx_count"`
	TXCtrlCount int    `yaml:"tx_ctrl_count"`
	TXDataCount int    `yaml:"tx_data_count"`
	MaxOctets   uint16 `yaml:"max_octets"`
	MemBase     uint32 `yaml:"mem_base"`
	MemSize     uint32 `yaml:"mem_size"`
}

// DefaultConfig returns conservative defaults: a handful of simultaneous
// connections, the pre-DLE 27-octet default payload, and a 75ppm crystal
// (scaPPM index 4).
func DefaultConfig() Config {
	return Config{
		HFClockPPM:  50,
		SCA:         4,
		MaxConn:     4,
		RXCount:     8,
		TXCtrlCount: 4,
		TXDataCount: 8,
		MaxOctets:   27,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig, layering caller
// overrides onto a baseline rather than requiring every field to be
// specified.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResidualBytes reports how much of the advisory MemSize budget the
// allocated pools did not use, mirroring radio_init's return value; a
// negative result means the configured pools exceed the advisory budget.
func (c Config) ResidualBytes(nodeSize int) int64 {
	used := int64(c.RXCount+c.TXCtrlCount+c.TXDataCount) * int64(nodeSize)
	return int64(c.MemSize) - used
}

// nodeSize is the per-pool buffer size needed to hold MaxOctets of payload
// plus the 2-byte data channel PDU header.
func (c Config) nodeSize() int {
	return int(c.MaxOctets) + 2
}
