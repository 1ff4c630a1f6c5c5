// Package config loads an outstation session's configuration from an
// INI file, the same file format gocanopen's object dictionary parser
// uses for EDS files.
package config

import (
	"fmt"
	"time"

	"github.com/dnp3go/dnp3/pkg/outstation"
	"gopkg.in/ini.v1"
)

// Load reads an INI file at path and decodes it into a SessionConfig.
// Unrecognized keys are ignored; missing keys keep their
// DefaultSessionConfig value.
func Load(path string) (outstation.SessionConfig, error) {
	file, err := ini.Load(path)
	if err != nil {
		return outstation.SessionConfig{}, fmt.Errorf("config: loading %s: %w", path, err)
	}
	return decode(file)
}

func decode(file *ini.File) (outstation.SessionConfig, error) {
	cfg := outstation.DefaultSessionConfig()
	section := file.Section("outstation")

	if key := section.Key("outstation_address"); key.String() != "" {
		v, err := key.Uint()
		if err != nil {
			return cfg, fmt.Errorf("config: outstation_address: %w", err)
		}
		if v > 65519 {
			return cfg, fmt.Errorf("config: outstation_address must be <= 65519")
		}
		cfg.OutstationAddress = uint16(v)
	}

	if key := section.Key("master_address"); key.String() != "" {
		v, err := key.Uint()
		if err != nil {
			return cfg, fmt.Errorf("config: master_address: %w", err)
		}
		cfg.MasterAddress = uint16(v)
	}

	if key := section.Key("decode_level"); key.String() != "" {
		switch key.String() {
		case "nothing":
			cfg.DecodeLevel = outstation.DecodeNothing
		case "header":
			cfg.DecodeLevel = outstation.DecodeHeader
		case "object-headers":
			cfg.DecodeLevel = outstation.DecodeObjectHeaders
		case "object-values":
			cfg.DecodeLevel = outstation.DecodeObjectValues
		default:
			return cfg, fmt.Errorf("config: unknown decode_level %q", key.String())
		}
	}

	if err := durationKey(section, "confirm_timeout", &cfg.ConfirmTimeout); err != nil {
		return cfg, err
	}
	if err := durationKey(section, "select_timeout", &cfg.SelectTimeout); err != nil {
		return cfg, err
	}
	if err := durationKey(section, "unsolicited_retry_delay", &cfg.UnsolicitedRetryDelay); err != nil {
		return cfg, err
	}
	if err := durationKey(section, "keep_alive_timeout", &cfg.KeepAliveTimeout); err != nil {
		return cfg, err
	}

	if key := section.Key("broadcast_enabled"); key.String() != "" {
		v, err := key.Bool()
		if err != nil {
			return cfg, fmt.Errorf("config: broadcast_enabled: %w", err)
		}
		cfg.BroadcastEnabled = v
	}

	for _, cls := range []struct {
		name string
		dst  *bool
	}{
		{"unsolicited_class1", &cfg.EnabledUnsolicitedClasses.Class1},
		{"unsolicited_class2", &cfg.EnabledUnsolicitedClasses.Class2},
		{"unsolicited_class3", &cfg.EnabledUnsolicitedClasses.Class3},
	} {
		if key := section.Key(cls.name); key.String() != "" {
			v, err := key.Bool()
			if err != nil {
				return cfg, fmt.Errorf("config: %s: %w", cls.name, err)
			}
			*cls.dst = v
		}
	}

	if key := section.Key("max_unsolicited_retries"); key.String() != "" {
		v, err := key.Int()
		if err != nil {
			return cfg, fmt.Errorf("config: max_unsolicited_retries: %w", err)
		}
		cfg.MaxUnsolicitedRetries = &v
	}

	if err := intKey(section, "max_controls_per_request", &cfg.MaxControlsPerRequest); err != nil {
		return cfg, err
	}
	if err := intKey(section, "max_read_request_headers", &cfg.MaxReadRequestHeaders); err != nil {
		return cfg, err
	}

	if err := bufferSizeKey(section, "solicited_buffer_size", &cfg.SolicitedBufferSize); err != nil {
		return cfg, err
	}
	if err := bufferSizeKey(section, "unsolicited_buffer_size", &cfg.UnsolicitedBufferSize); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func durationKey(section *ini.Section, name string, dst *time.Duration) error {
	key := section.Key(name)
	if key.String() == "" {
		return nil
	}
	v, err := key.Duration()
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	*dst = v
	return nil
}

func intKey(section *ini.Section, name string, dst *int) error {
	key := section.Key(name)
	if key.String() == "" {
		return nil
	}
	v, err := key.Int()
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	*dst = v
	return nil
}

func bufferSizeKey(section *ini.Section, name string, dst *int) error {
	var v int
	if err := intKey(section, name, &v); err != nil {
		return err
	}
	if v == 0 {
		return nil
	}
	if v < 249 || v > 2048 {
		return fmt.Errorf("config: %s must be between 249 and 2048, got %d", name, v)
	}
	*dst = v
	return nil
}
