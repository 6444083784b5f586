// Package config loads the tool configuration file (dvcdbg.hcl): bus adapter
// selection, scan range and logging level. Everything has a default; a
// missing file is not an error.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/p14c31355/dvcdbg/pkg/i2c"
)

// Config is the decoded tool configuration.
type Config struct {
	Bus  Bus
	Scan Scan
	Log  Log
}

// Bus selects and parameterizes the bus adapter.
type Bus struct {
	Adapter   string // "sim" or "ch341"
	VID, PID  uint16
	TimeoutMS int
}

// Scan bounds the address sweep.
type Scan struct {
	Start, End byte
	Probe      []byte
}

// Log configures the slog level: "debug", "info", "warn" or "error".
type Log struct {
	Level string
}

// Default returns the configuration used when no file (or block) is present.
func Default() Config {
	return Config{
		Bus:  Bus{Adapter: "sim", VID: i2c.VendorIDWCH, PID: i2c.ProductIDCH341, TimeoutMS: 5000},
		Scan: Scan{Start: i2c.ScanStart, End: i2c.ScanEnd},
		Log:  Log{Level: "info"},
	}
}

// Load reads and parses the file at path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	src, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("config: %w", err)
	}
	return Parse(src, path)
}

var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "bus"},
		{Type: "scan"},
		{Type: "log"},
	},
}

// Parse decodes configuration source on top of the defaults.
func Parse(src []byte, filename string) (Config, error) {
	cfg := Default()

	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return cfg, diags
	}
	content, diags := file.Body.Content(rootSchema)
	if diags.HasErrors() {
		return cfg, diags
	}

	for _, name := range []string{"bus", "scan", "log"} {
		block, diags := findUniqueBlock(content.Blocks, name)
		if diags.HasErrors() {
			return cfg, diags
		}
		if block == nil {
			continue
		}
		var err error
		switch name {
		case "bus":
			err = decodeBus(block.Body, &cfg.Bus)
		case "scan":
			err = decodeScan(block.Body, &cfg.Scan)
		case "log":
			err = decodeLog(block.Body, &cfg.Log)
		}
		if err != nil {
			return cfg, err
		}
	}

	switch cfg.Bus.Adapter {
	case "sim", "ch341":
	default:
		return cfg, fmt.Errorf("config: unknown adapter %q (supported: sim, ch341)", cfg.Bus.Adapter)
	}
	if cfg.Scan.Start > cfg.Scan.End {
		return cfg, fmt.Errorf("config: scan range 0x%02X..0x%02X is empty", cfg.Scan.Start, cfg.Scan.End)
	}
	return cfg, nil
}

// findUniqueBlock returns the single block of the given type, diagnosing
// duplicates.
func findUniqueBlock(blocks hcl.Blocks, name string) (*hcl.Block, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics
	for _, block := range blocks {
		if block.Type != name {
			continue
		}
		if found != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"" + name + "\" block",
				Detail:   "Only one \"" + name + "\" block is allowed.",
				Subject:  &block.DefRange,
			})
		}
		found = block
	}
	return found, diags
}

func decodeBus(body hcl.Body, out *Bus) error {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return diags
	}
	for name, attr := range attrs {
		switch name {
		case "adapter":
			s, err := stringValue(attr)
			if err != nil {
				return err
			}
			out.Adapter = s
		case "vid":
			v, err := hexValue(attr, 16)
			if err != nil {
				return err
			}
			out.VID = uint16(v)
		case "pid":
			v, err := hexValue(attr, 16)
			if err != nil {
				return err
			}
			out.PID = uint16(v)
		case "timeout_ms":
			v, err := intValue(attr)
			if err != nil {
				return err
			}
			out.TimeoutMS = int(v)
		default:
			return unknownAttr(attr, "bus")
		}
	}
	return nil
}

func decodeScan(body hcl.Body, out *Scan) error {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return diags
	}
	for name, attr := range attrs {
		switch name {
		case "start":
			v, err := hexValue(attr, 8)
			if err != nil {
				return err
			}
			out.Start = byte(v)
		case "end":
			v, err := hexValue(attr, 8)
			if err != nil {
				return err
			}
			out.End = byte(v)
		case "probe":
			bs, err := byteListValue(attr)
			if err != nil {
				return err
			}
			out.Probe = bs
		default:
			return unknownAttr(attr, "scan")
		}
	}
	return nil
}

func decodeLog(body hcl.Body, out *Log) error {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return diags
	}
	for name, attr := range attrs {
		switch name {
		case "level":
			s, err := stringValue(attr)
			if err != nil {
				return err
			}
			out.Level = s
		default:
			return unknownAttr(attr, "log")
		}
	}
	return nil
}

func unknownAttr(attr *hcl.Attribute, block string) error {
	return fmt.Errorf("config: %s: unsupported attribute %q in %q block", attr.Range, attr.Name, block)
}

func stringValue(attr *hcl.Attribute) (string, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	v, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("config: %s: %q must be a string: %w", attr.Range, attr.Name, err)
	}
	return v.AsString(), nil
}

func intValue(attr *hcl.Attribute) (int64, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return 0, diags
	}
	v, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %q must be a number: %w", attr.Range, attr.Name, err)
	}
	n, _ := v.AsBigFloat().Int64()
	return n, nil
}

// hexValue accepts either an HCL number or a "0x.." string literal, the usual
// way addresses and IDs appear in datasheets.
func hexValue(attr *hcl.Attribute, bits int) (uint64, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return 0, diags
	}
	if v.Type() == cty.String {
		n, err := strconv.ParseUint(v.AsString(), 0, bits)
		if err != nil {
			return 0, fmt.Errorf("config: %s: bad hex literal for %q: %w", attr.Range, attr.Name, err)
		}
		return n, nil
	}
	v, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %q must be a number or hex string: %w", attr.Range, attr.Name, err)
	}
	n, _ := v.AsBigFloat().Int64()
	if n < 0 || uint64(n) >= 1<<bits {
		return 0, fmt.Errorf("config: %s: %q out of range for %d bits", attr.Range, attr.Name, bits)
	}
	return uint64(n), nil
}

func byteListValue(attr *hcl.Attribute) ([]byte, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if !v.CanIterateElements() {
		return nil, fmt.Errorf("config: %s: %q must be a list of bytes", attr.Range, attr.Name)
	}
	var out []byte
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.Type() == cty.String {
			n, err := strconv.ParseUint(elem.AsString(), 0, 8)
			if err != nil {
				return nil, fmt.Errorf("config: %s: bad byte in %q: %w", attr.Range, attr.Name, err)
			}
			out = append(out, byte(n))
			continue
		}
		elem, err := convert.Convert(elem, cty.Number)
		if err != nil {
			return nil, fmt.Errorf("config: %s: bad byte in %q: %w", attr.Range, attr.Name, err)
		}
		n, _ := elem.AsBigFloat().Int64()
		if n < 0 || n > 0xFF {
			return nil, fmt.Errorf("config: %s: byte out of range in %q", attr.Range, attr.Name)
		}
		out = append(out, byte(n))
	}
	return out, nil
}
