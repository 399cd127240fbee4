package wg750

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           uint16 = 502
	defaultConnectTimeout        = 5 * time.Second
)

// ChannelConfig overrides the presentation of one high-level channel.
// Type selects another semantic reading of the same word cell
// ("Int16 In", "Float16 In", "Counter 16Bit", "Int16 Out",
// "Float16 Out"); bit channels and sub-protocol channels keep their
// assembled type.
type ChannelConfig struct {
	Index int    `yaml:"index"`
	Name  string `yaml:"name,omitempty"`
	Type  string `yaml:"type,omitempty"`
}

// ModuleConfig overrides the presentation of one module, keyed by its
// position in the chassis. Type selects the representation of the
// module's word channels: "Int8" assembles two byte-half channels per
// word, "Float16" reinterprets each word, "Counter16" reinterprets
// each input word (holding words stay Int16), the default is Int16.
type ModuleConfig struct {
	Index    int             `yaml:"index"`
	Name     string          `yaml:"name,omitempty"`
	Type     string          `yaml:"type,omitempty"`
	Channels []ChannelConfig `yaml:"channels,omitempty"`
}

// PollingConfig sets the continuous poll cadence in milliseconds.
// Global applies to all regions; the per-region fields override it.
type PollingConfig struct {
	Global   int `yaml:"global,omitempty"`
	Input    int `yaml:"input,omitempty"`
	Holding  int `yaml:"holding,omitempty"`
	Discrete int `yaml:"discrete,omitempty"`
	Coil     int `yaml:"coil,omitempty"`
}

// intervals translates the millisecond config into poller intervals.
func (p PollingConfig) intervals() PollIntervals {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }

	return PollIntervals{
		Global:   ms(p.Global),
		Input:    ms(p.Input),
		Holding:  ms(p.Holding),
		Discrete: ms(p.Discrete),
		Coil:     ms(p.Coil),
	}
}

// HubConfig describes how to reach a controller and how to present its
// modules.
type HubConfig struct {
	Host    string         `yaml:"host"`
	Port    uint16         `yaml:"port,omitempty"`
	Timeout time.Duration  `yaml:"timeout,omitempty"`
	Polling PollingConfig  `yaml:"polling,omitempty"`
	Modules []ModuleConfig `yaml:"modules,omitempty"`

	// Logger, when set, receives all driver output.
	Logger *log.Logger `yaml:"-"`
}

// withDefaults fills in the unset fields.
func (c HubConfig) withDefaults() HubConfig {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = defaultConnectTimeout
	}

	return c
}

// url returns the modbus endpoint of the controller.
func (c HubConfig) url() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// moduleConfig returns the override for the module at the given
// chassis position, nil when absent.
func (c HubConfig) moduleConfig(index int) *ModuleConfig {
	for i := range c.Modules {
		if c.Modules[i].Index == index {
			return &c.Modules[i]
		}
	}

	return nil
}

// LoadConfig reads a hub configuration from a YAML file.
func LoadConfig(path string) (config HubConfig, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	if err = yaml.Unmarshal(data, &config); err != nil {
		err = fmt.Errorf("parsing %s: %w", path, err)
		return
	}

	return config.withDefaults(), nil
}

// Save writes the hub configuration to a YAML file.
func (c HubConfig) Save(path string) (err error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return
	}

	return os.WriteFile(path, data, 0o644)
}
