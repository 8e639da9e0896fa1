package importer

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stockroom/internal/ir"
)

// ResolutionFile is a YAML document of conflict resolutions keyed by
// source line.
//
//	resolutions:
//	  - line: 2
//	    split:
//	      - {subtype: A, qty: 6}
//	      - {subtype: B, qty: 4}
//	  - line: 5
//	    choice: incoming
type ResolutionFile struct {
	Resolutions []ResolutionSpec `yaml:"resolutions"`
}

// ResolutionSpec resolves the conflicted row at Line. Exactly one of
// Split or Choice is set.
type ResolutionSpec struct {
	Line   int         `yaml:"line"`
	Split  []SplitSpec `yaml:"split,omitempty"`
	Choice string      `yaml:"choice,omitempty"`
}

// SplitSpec allocates Qty to one candidate. Code defaults to the row's code.
type SplitSpec struct {
	Code    string `yaml:"code,omitempty"`
	Subtype string `yaml:"subtype"`
	Qty     int    `yaml:"qty"`
}

// ReadResolutions decodes a resolution file. Unknown keys are rejected.
func ReadResolutions(r io.Reader) (*ResolutionFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f ResolutionFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("resolutions: %w", err)
	}
	return &f, nil
}

// ApplyResolutions resolves session rows from f. Every spec is attempted;
// the returned errors describe the ones that were rejected.
func (s *Session) ApplyResolutions(f *ResolutionFile) []error {
	var errs []error
	seen := make(map[int]bool)

	for _, spec := range f.Resolutions {
		if seen[spec.Line] {
			errs = append(errs, fmt.Errorf("line %d: resolved more than once", spec.Line))
			continue
		}
		seen[spec.Line] = true

		if err := s.applyResolution(spec); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Session) applyResolution(spec ResolutionSpec) error {
	idx, ok := s.IndexOfLine(spec.Line)
	if !ok {
		return fmt.Errorf("line %d: no such row", spec.Line)
	}
	item, _ := s.Item(idx)

	var (
		res Resolution
		err error
	)
	switch {
	case len(spec.Split) > 0 && spec.Choice != "":
		return fmt.Errorf("line %d: split and choice are mutually exclusive", spec.Line)
	case len(spec.Split) > 0:
		alloc := make(map[ir.ItemKey]int, len(spec.Split))
		for _, a := range spec.Split {
			code := a.Code
			if code == "" {
				code = item.Row.Code
			}
			key := ir.NewItemKey(code, a.Subtype)
			if _, dup := alloc[key]; dup {
				return fmt.Errorf("line %d: %s allocated twice", spec.Line, key)
			}
			alloc[key] = a.Qty
		}
		res, err = ResolveSplit(item, alloc)
	case spec.Choice != "":
		res, err = ResolveClassification(item, Choice(spec.Choice))
	default:
		return fmt.Errorf("line %d: resolution needs split or choice", spec.Line)
	}
	if err != nil {
		return err
	}
	return s.Resolve(idx, res)
}
