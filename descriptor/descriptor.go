// Package descriptor renders, parses and persists flash algorithm
// descriptors.
//
// A descriptor is written either standalone or upserted into the
// flash_algorithms list of a target definition template.
package descriptor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/flashgen/types"
)

// Descriptor is the loadable description of one flash algorithm.
type Descriptor struct {
	Name string `yaml:"name" json:"name"`
	// Instructions is the base64 (standard alphabet, padded) flat image.
	Instructions  string  `yaml:"instructions" json:"instructions"`
	PCInit        Address `yaml:"pc_init" json:"pc_init"`
	PCUnInit      Address `yaml:"pc_uninit" json:"pc_uninit"`
	PCProgramPage Address `yaml:"pc_program_page" json:"pc_program_page"`
	PCEraseSector Address `yaml:"pc_erase_sector" json:"pc_erase_sector"`
	PCEraseAll    Address `yaml:"pc_erase_all" json:"pc_erase_all"`
}

// EncodeImage encodes a flat binary image for the instructions field.
func EncodeImage(image []byte) string {
	return base64.StdEncoding.EncodeToString(image)
}

// New assembles a descriptor from a flat image and resolved addresses.
func New(name string, image []byte, addrs types.Addresses) *Descriptor {
	return &Descriptor{
		Name:          name,
		Instructions:  EncodeImage(image),
		PCInit:        Address(addrs.Init),
		PCUnInit:      Address(addrs.UnInit),
		PCProgramPage: Address(addrs.ProgramPage),
		PCEraseSector: Address(addrs.EraseSector),
		PCEraseAll:    Address(addrs.EraseChip),
	}
}

// Image decodes the instructions field.
func (d *Descriptor) Image() ([]byte, error) {
	image, err := base64.StdEncoding.DecodeString(d.Instructions)
	if err != nil {
		return nil, fmt.Errorf("descriptor %q: invalid instructions: %w", d.Name, err)
	}
	return image, nil
}

// Addresses returns the entry point addresses.
func (d *Descriptor) Addresses() types.Addresses {
	return types.Addresses{
		Init:        uint64(d.PCInit),
		UnInit:      uint64(d.PCUnInit),
		ProgramPage: uint64(d.PCProgramPage),
		EraseSector: uint64(d.PCEraseSector),
		EraseChip:   uint64(d.PCEraseAll),
	}
}

// Encode renders the descriptor as a standalone YAML document.
func (d *Descriptor) Encode() ([]byte, error) {
	return encodeYAML(d)
}

// Decode parses every descriptor in a YAML document. A document with a
// flash_algorithms sequence yields its entries; any other mapping is read
// as one standalone descriptor.
func Decode(r io.Reader) ([]*Descriptor, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty descriptor document")
		}
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}

	root := documentRoot(&doc)
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, errors.New("descriptor document must be a mapping")
	}

	if algos := mappingValue(root, algorithmsKey); algos != nil {
		if algos.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: %s must be a sequence", algos.Line, algorithmsKey)
		}
		out := make([]*Descriptor, 0, len(algos.Content))
		for _, item := range algos.Content {
			var d Descriptor
			if err := item.Decode(&d); err != nil {
				return nil, fmt.Errorf("failed to decode %s entry: %w", algorithmsKey, err)
			}
			out = append(out, &d)
		}
		return out, nil
	}

	var d Descriptor
	if err := root.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor: %w", err)
	}
	return []*Descriptor{&d}, nil
}

// DecodeBytes parses descriptors from an in-memory document.
func DecodeBytes(data []byte) ([]*Descriptor, error) {
	return Decode(bytes.NewReader(data))
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return buf.Bytes(), nil
}
