// Package lut generates the lookup tables compiled into the FPGA design.
//
// The angle_delay_lut module maps a steering angle 0..180 to the delay,
// in samples, between adjacent microphones.  The display module maps
// an angle to the BCD digits shown on the seven-segment display.  Both
// are emitted as SystemVerilog case items to paste into the modules.
package lut

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"

	"github.com/jbrzusto/micarray/beamform"
)

const (
	MAX_ANGLE     = 180 // last table entry, degrees
	DISPLAY_WIDTH = 12  // bits of BCD display code
)

// DelayTable returns, for each angle 0..180, the delay between adjacent
// mics in whole samples: trunc(distance*cos(angle)/c*frequency).
// Values past 90 degrees are negative.
func DelayTable(distance float64, frequency int) []int {
	t := make([]int, MAX_ANGLE+1)
	for a := range t {
		t[a] = int(distance * math.Cos(float64(a)*math.Pi/180) / beamform.SpeedOfSound * float64(frequency))
	}
	return t
}

// MaxDelay is the largest absolute entry of t.
func MaxDelay(t []int) int {
	m := 0
	for _, d := range t {
		if d < 0 {
			d = -d
		}
		if d > m {
			m = d
		}
	}
	return m
}

// WriteDelayCases writes one case item per angle.  The hardware takes
// the sign from the angle, so only magnitudes are written.
func WriteDelayCases(w io.Writer, t []int) error {
	for a, d := range t {
		if d < 0 {
			d = -d
		}
		if _, err := fmt.Fprintf(w, "\n8'd%d: delay = 8'd%d;", a, d); err != nil {
			return err
		}
	}
	return nil
}

// DisplayCode packs the hundreds, tens and units digits of angle into
// three 4-bit BCD fields.
func DisplayCode(angle int) int {
	return (angle/100)<<8 | ((angle%100)/10)<<4 | angle%10
}

// WriteDisplayCases writes the display case item for every angle.
func WriteDisplayCases(w io.Writer) error {
	for a := 0; a <= MAX_ANGLE; a++ {
		if _, err := fmt.Fprintf(w, "\n8'd%d: ascii_out = 12'b%0*b;", a, DISPLAY_WIDTH, DisplayCode(a)); err != nil {
			return err
		}
	}
	return nil
}

// param is one localparam extracted from a tagged struct.
type param struct {
	name  string
	value uint64
	desc  string
}

// extractParams reads integer fields tagged with `param` from a struct
// (or pointer to one).  Nested structs are walked in order.
func extractParams(ps *[]param, v reflect.Value) {
	switch v.Kind() {
	case reflect.Ptr:
		extractParams(ps, v.Elem())
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			fv := v.Field(i)
			switch f.Type.Kind() {
			case reflect.Struct:
				extractParams(ps, fv)
			case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
				if name := f.Tag.Get("param"); name != "" {
					*ps = append(*ps, param{name: name, value: fv.Uint(), desc: f.Tag.Get("desc")})
				}
			case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
				if name := f.Tag.Get("param"); name != "" {
					*ps = append(*ps, param{name: name, value: uint64(fv.Int()), desc: f.Tag.Get("desc")})
				}
			}
		}
	}
}

// WriteParams writes a SystemVerilog header declaring one localparam
// per tagged field of params (normally an fpga.Params).
func WriteParams(w io.Writer, params interface{}) error {
	var ps []param
	extractParams(&ps, reflect.ValueOf(params))
	if len(ps) == 0 {
		return fmt.Errorf("lut: %T has no param-tagged fields", params)
	}
	var b strings.Builder
	b.WriteString("// design parameters - generated by gen_sv\n\n")
	for _, p := range ps {
		fmt.Fprintf(&b, "localparam %-20s = %d; // %s\n", p.name, p.value, p.desc)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
