package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
)

// Format is an output file format.
type Format string

const (
	FormatBin  Format = "bin"
	FormatHex  Format = "hex"
	FormatSrec Format = "srec"
	FormatIHex Format = "ihex"
)

// Formats lists the supported formats.
var Formats = []Format{FormatBin, FormatHex, FormatSrec, FormatIHex}

// ParseFormat accepts a format name; empty means bin.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bin", "raw":
		return FormatBin, nil
	case "hex", "hexdump":
		return FormatHex, nil
	case "srec", "s19", "s37":
		return FormatSrec, nil
	case "ihex", "intel":
		return FormatIHex, nil
	}
	return "", errors.Errorf("unknown format %q (want bin, hex, srec or ihex)", name)
}

// srecHeader is the text carried by the S0 record.
const srecHeader = "OpenTraceBDM"

// ihexLineBytes is the data length of one Intel HEX record.
const ihexLineBytes = 16

// Write encodes data, which starts at address start, in format f.
func Write(w io.Writer, f Format, start uint32, data []byte) error {
	switch f {
	case FormatBin:
		_, err := w.Write(data)
		return err
	case FormatHex:
		return writeHexdump(w, start, data)
	case FormatSrec:
		return writeSrec(w, start, data)
	case FormatIHex:
		mem := gohex.NewMemory()
		if err := mem.AddBinary(start, data); err != nil {
			return errors.Wrap(err, "ihex")
		}
		return mem.DumpIntelHex(w, ihexLineBytes)
	}
	return errors.Errorf("unknown format %q", f)
}

// SaveFile writes data to path in format f.
func SaveFile(path string, f Format, start uint32, data []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := Write(file, f, start, data); err != nil {
		file.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(file.Close(), "close %s", path)
}

func writeHexdump(w io.Writer, start uint32, data []byte) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		chunk := data[i:end]

		hexes := make([]string, len(chunk))
		ascii := make([]byte, len(chunk))
		for j, b := range chunk {
			hexes[j] = fmt.Sprintf("%02X", b)
			if b >= 32 && b <= 126 {
				ascii[j] = b
			} else {
				ascii[j] = '.'
			}
		}
		fmt.Fprintf(bw, "%08X: %-48s |%s|\n", start+uint32(i), strings.Join(hexes, " "), ascii)
	}
	return bw.Flush()
}

// srecBytes is the data length of one S3 record.
const srecBytes = 32

func writeSrec(w io.Writer, start uint32, data []byte) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(srecord('0', []byte{0, 0}, []byte(srecHeader)))
	for i := 0; i < len(data); i += srecBytes {
		end := i + srecBytes
		if end > len(data) {
			end = len(data)
		}
		bw.WriteString(srecord('3', be32(start+uint32(i)), data[i:end]))
	}
	bw.WriteString(srecord('7', be32(start), nil))
	return bw.Flush()
}

// srecord formats one S-record: type, byte count, address, data, checksum.
func srecord(typ byte, addr, data []byte) string {
	count := len(addr) + len(data) + 1
	sum := count
	var sb strings.Builder
	fmt.Fprintf(&sb, "S%c%02X", typ, count)
	for _, b := range addr {
		fmt.Fprintf(&sb, "%02X", b)
		sum += int(b)
	}
	for _, b := range data {
		fmt.Fprintf(&sb, "%02X", b)
		sum += int(b)
	}
	fmt.Fprintf(&sb, "%02X\n", ^byte(sum))
	return sb.String()
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
