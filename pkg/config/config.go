// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the device profile the interrupt engine runs with.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/kfd"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/poison"
)

// Profile describes one GPU device. Tables left out of the file use the
// built-in GFX9 defaults.
type Profile struct {
	GPUID       uint32          `yaml:"gpuID"`
	FirstVMID   uint8           `yaml:"firstVMID"`
	LastVMID    uint8           `yaml:"lastVMID"`
	SchedPolicy kfd.SchedPolicy `yaml:"schedPolicy"`

	GC          device.IPVersion `yaml:"gc"`
	SDMA        device.IPVersion `yaml:"sdma"`
	MECFirmware uint32           `yaml:"mecFirmware"`
	PMFirmware  uint32           `yaml:"pmFirmware"`

	NoQueueEvictionOnVMFault bool `yaml:"noQueueEvictionOnVMFault"`

	Partitioned     bool   `yaml:"partitioned"`
	InterruptBitmap uint32 `yaml:"interruptBitmap"`

	QueueSize int `yaml:"queueSize"`

	ContextIDs  *kfd.ContextIDTable `yaml:"contextIDs,omitempty"`
	ResetPolicy *poison.Table       `yaml:"resetPolicy,omitempty"`
}

// Default returns an MI300-class profile: GC 9.4.3 with the hardware
// scheduler, compute VMIDs 8-15 and one partition owning node 0.
func Default() *Profile {
	return &Profile{
		FirstVMID:       8,
		LastVMID:        15,
		SchedPolicy:     kfd.SchedPolicyHWS,
		GC:              device.IP(9, 4, 3),
		SDMA:            device.IP(4, 4, 2),
		MECFirmware:     0x9a,
		PMFirmware:      poison.MinFirmwareGC943,
		Partitioned:     true,
		InterruptBitmap: 0x0000_0001,
		QueueSize:       kfd.DefaultQueueSize,
	}
}

// Load reads a profile from path.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadProfile, err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse decodes a profile. Unknown keys are rejected so that typos in
// firmware thresholds do not silently fall back to defaults.
func Parse(r io.Reader) (*Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadProfile, err)
	}

	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrParseProfile, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the profile.
func (p *Profile) Validate() error {
	if err := p.Engine().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if p.GC == (device.IPVersion{}) {
		return fmt.Errorf("%w: gc version is required", ErrInvalidProfile)
	}
	if p.Partitioned && p.InterruptBitmap == 0 {
		return fmt.Errorf("%w: partitioned device without interrupt bitmap", ErrInvalidProfile)
	}
	if p.ResetPolicy != nil {
		for name, fam := range map[string]poison.FamilyPolicy{
			"gfx": p.ResetPolicy.GFX, "sdma": p.ResetPolicy.SDMA, "mmhub": p.ResetPolicy.MMHUB,
		} {
			if fam.Default != device.ResetMode1 && fam.Default != device.ResetMode2 {
				return fmt.Errorf("%w: %s reset policy has no default mode", ErrInvalidProfile, name)
			}
		}
	}
	return nil
}

// Engine converts the profile into the engine configuration.
func (p *Profile) Engine() kfd.Config {
	cfg := kfd.Config{
		GPUID:               p.GPUID,
		FirstVMID:           p.FirstVMID,
		LastVMID:            p.LastVMID,
		SchedPolicy:         p.SchedPolicy,
		GC:                  p.GC,
		SDMA:                p.SDMA,
		MECFirmware:         p.MECFirmware,
		PMFirmware:          p.PMFirmware,
		NoEvictionOnVMFault: p.NoQueueEvictionOnVMFault,
		Partitioned:         p.Partitioned,
		InterruptBitmap:     p.InterruptBitmap,
		QueueSize:           p.QueueSize,
		ContextIDs:          kfd.DefaultContextIDTable(),
		ResetPolicy:         poison.DefaultTable(),
	}
	if p.ContextIDs != nil {
		cfg.ContextIDs = *p.ContextIDs
	}
	if p.ResetPolicy != nil {
		cfg.ResetPolicy = *p.ResetPolicy
	}
	return cfg
}

// Marshal encodes the profile as YAML.
func (p *Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
