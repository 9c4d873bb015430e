package layout

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Array is a C-ordered uint8 tensor, typically (H, W) or (H, W, C)
type Array struct {
	Shape []int
	Data  []uint8
}

// NamedArray is an archive member, named without its .npy extension
type NamedArray struct {
	Name string
	Array
}

// Height is the first dimension
func (a Array) Height() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// Width is the second dimension
func (a Array) Width() int {
	if len(a.Shape) < 2 {
		return 0
	}
	return a.Shape[1]
}

// Channels is the third dimension, or 1 for two dimensional arrays
func (a Array) Channels() int {
	if len(a.Shape) < 3 {
		return 1
	}
	return a.Shape[2]
}

var npyMagic = []byte("\x93NUMPY")

var (
	descrPattern   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranPattern = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapePattern   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// DecodeArrays reads every .npy member of an .npz archive in archive order
func DecodeArrays(npz []byte) ([]NamedArray, error) {
	zr, err := zip.NewReader(bytes.NewReader(npz), int64(len(npz)))
	if err != nil {
		return nil, fmt.Errorf("layout payload is not an npz archive: %w", err)
	}

	var out []NamedArray
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".npy") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}

		arr, err := DecodeNPY(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Name, err)
		}
		out = append(out, NamedArray{Name: strings.TrimSuffix(f.Name, ".npy"), Array: arr})
	}
	return out, nil
}

// DecodeNPY reads a single .npy file holding uint8 data
func DecodeNPY(data []byte) (Array, error) {
	if len(data) < 10 || !bytes.Equal(data[:6], npyMagic) {
		return Array{}, fmt.Errorf("not an npy file")
	}

	major := data[6]
	var headerLen, offset int
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		offset = 10
	case 2, 3:
		if len(data) < 12 {
			return Array{}, fmt.Errorf("truncated npy header")
		}
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		offset = 12
	default:
		return Array{}, fmt.Errorf("unsupported npy version %d", major)
	}
	if len(data) < offset+headerLen {
		return Array{}, fmt.Errorf("truncated npy header")
	}
	header := string(data[offset : offset+headerLen])

	m := descrPattern.FindStringSubmatch(header)
	if m == nil {
		return Array{}, fmt.Errorf("npy header has no descr")
	}
	switch m[1] {
	case "|u1", "<u1", ">u1", "u1", "|b1":
	default:
		return Array{}, fmt.Errorf("unsupported dtype %s, want uint8", m[1])
	}
	if f := fortranPattern.FindStringSubmatch(header); f != nil && f[1] == "True" {
		return Array{}, fmt.Errorf("fortran ordered arrays are not supported")
	}

	s := shapePattern.FindStringSubmatch(header)
	if s == nil {
		return Array{}, fmt.Errorf("npy header has no shape")
	}
	shape, err := parseShape(s[1])
	if err != nil {
		return Array{}, err
	}

	body := data[offset+headerLen:]
	size := 1
	for _, d := range shape {
		if d != 0 && size > len(body)/d {
			return Array{}, fmt.Errorf("npy body has %d bytes, too short for shape %v", len(body), shape)
		}
		size *= d
	}
	return Array{Shape: shape, Data: body[:size]}, nil
}

func parseShape(s string) ([]int, error) {
	var shape []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid npy shape %q", s)
		}
		shape = append(shape, d)
	}
	return shape, nil
}

// EncodeNPY writes a version 1.0 .npy file. It is the inverse of DecodeNPY.
func EncodeNPY(a Array) []byte {
	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := strings.Join(dims, ", ")
	if len(dims) == 1 {
		shape += ","
	}
	header := fmt.Sprintf("{'descr': '|u1', 'fortran_order': False, 'shape': (%s), }", shape)
	// magic + version + length + header + newline is padded to 64 bytes
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	buf := new(bytes.Buffer)
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(a.Data)
	return buf.Bytes()
}
