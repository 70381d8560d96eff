package config

import (
	"fmt"
	"strings"
)

type listFlag struct {
	sep     string
	allowed map[string]bool
	values  []string
}

func newListFlag(sep string, allowed ...string) *listFlag {
	lf := &listFlag{
		sep:     sep,
		allowed: make(map[string]bool),
	}

	for _, a := range allowed {
		lf.allowed[a] = true
	}

	return lf
}

func commaListFlag(allowed ...string) *listFlag {
	return newListFlag(",", allowed...)
}

func (lf *listFlag) Set(value string) error {
	if lf == nil {
		return nil
	}

	if value == "" {
		lf.values = nil
		return nil
	}

	lf.values = strings.Split(value, lf.sep)
	for i := range lf.values {
		lf.values[i] = strings.TrimSpace(lf.values[i])
	}

	return lf.validate()
}

func (lf *listFlag) validate() error {
	if len(lf.allowed) == 0 {
		return nil
	}

	for _, v := range lf.values {
		if !lf.allowed[v] {
			return fmt.Errorf("flag value not allowed: %s", v)
		}
	}

	return nil
}

// UnmarshalYAML accepts both a separated string and a list.
func (lf *listFlag) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var values []string
	if err := unmarshal(&values); err != nil {
		var value string
		if err := unmarshal(&value); err != nil {
			return err
		}

		return lf.Set(value)
	}

	lf.values = values
	return lf.validate()
}

func (lf listFlag) String() string { return strings.Join(lf.values, lf.sep) }

// Values returns the parsed list.
func (lf *listFlag) Values() []string {
	if lf == nil {
		return nil
	}

	return lf.values
}
