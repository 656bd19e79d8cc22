package visa

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// InterfaceKind is the interface family of a VISA resource string.
type InterfaceKind string

const (
	InterfaceGPIB   InterfaceKind = "GPIB"
	InterfaceSerial InterfaceKind = "ASRL"
	InterfaceUSB    InterfaceKind = "USB"
	InterfaceTCPIP  InterfaceKind = "TCPIP"
	InterfaceSim    InterfaceKind = "SIM"
)

// ClassInstr is the resource class of a message based instrument.
const ClassInstr = "INSTR"

var resourceClasses = map[string]bool{
	ClassInstr: true,
	"INTFC":    true,
	"SOCKET":   true,
	"RAW":      true,
}

// AddressLexer splits VISA resource strings such as
// "USB0::0x1AB1::0x0E11::DP8C1234::INSTR" into fields.
var AddressLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Sep", Pattern: `::`},
	{Name: "Field", Pattern: `[^:\s]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type addressAST struct {
	Interface string   `@Field`
	Fields    []string `( Sep @Field )*`
}

var addressParser = participle.MustBuild[addressAST](
	participle.Lexer(AddressLexer),
	participle.Elide("Whitespace"),
)

// Address is a parsed VISA resource string.
type Address struct {
	Raw       string
	Interface InterfaceKind
	Board     int
	Fields    []string // between the interface and the class
	Class     string
}

// ParseAddress parses a VISA resource string.
func ParseAddress(s string) (Address, error) {
	ast, err := addressParser.ParseString("", s)
	if err != nil {
		return Address{}, fmt.Errorf("visa: parse address %q: %w", s, err)
	}

	kind, board, err := splitInterface(ast.Interface)
	if err != nil {
		return Address{}, fmt.Errorf("visa: parse address %q: %w", s, err)
	}

	addr := Address{
		Raw:       strings.TrimSpace(s),
		Interface: kind,
		Board:     board,
		Fields:    ast.Fields,
	}
	if n := len(addr.Fields); n > 0 && resourceClasses[strings.ToUpper(addr.Fields[n-1])] {
		addr.Class = strings.ToUpper(addr.Fields[n-1])
		addr.Fields = addr.Fields[:n-1]
	}
	return addr, nil
}

func splitInterface(token string) (InterfaceKind, int, error) {
	i := len(token)
	for i > 0 && token[i-1] >= '0' && token[i-1] <= '9' {
		i--
	}
	if i == 0 {
		return "", 0, fmt.Errorf("interface %q has no name", token)
	}
	board := 0
	if i < len(token) {
		n, err := strconv.Atoi(token[i:])
		if err != nil {
			return "", 0, err
		}
		board = n
	}
	return InterfaceKind(strings.ToUpper(token[:i])), board, nil
}

// GPIBPrimary returns the primary bus address of a GPIB resource.
func (a Address) GPIBPrimary() (int, error) {
	if a.Interface != InterfaceGPIB || len(a.Fields) == 0 {
		return 0, fmt.Errorf("visa: %q is not a GPIB instrument address", a.Raw)
	}
	n, err := strconv.Atoi(a.Fields[0])
	if err != nil || n < 0 || n > 30 {
		return 0, fmt.Errorf("visa: invalid GPIB primary address %q", a.Fields[0])
	}
	return n, nil
}

// USBIdentity returns vendor id, product id and serial of a USB resource.
// The serial is empty when the address omits it.
func (a Address) USBIdentity() (vid, pid uint16, serial string, err error) {
	if a.Interface != InterfaceUSB || len(a.Fields) < 2 {
		return 0, 0, "", fmt.Errorf("visa: %q is not a USB instrument address", a.Raw)
	}
	v, err := strconv.ParseUint(a.Fields[0], 0, 16)
	if err != nil {
		return 0, 0, "", fmt.Errorf("visa: invalid USB vendor id %q", a.Fields[0])
	}
	p, err := strconv.ParseUint(a.Fields[1], 0, 16)
	if err != nil {
		return 0, 0, "", fmt.Errorf("visa: invalid USB product id %q", a.Fields[1])
	}
	if len(a.Fields) > 2 {
		serial = a.Fields[2]
	}
	return uint16(v), uint16(p), serial, nil
}

func (a Address) String() string {
	if a.Raw != "" {
		return a.Raw
	}
	parts := append([]string{fmt.Sprintf("%s%d", a.Interface, a.Board)}, a.Fields...)
	if a.Class != "" {
		parts = append(parts, a.Class)
	}
	return strings.Join(parts, "::")
}

// GPIBAddress formats the resource string of a GPIB instrument on board 0.
func GPIBAddress(primary int) string {
	return fmt.Sprintf("GPIB0::%d::INSTR", primary)
}

// SerialAddress formats the resource string of serial port n.
func SerialAddress(port int) string {
	return fmt.Sprintf("ASRL%d::INSTR", port)
}

// USBAddress formats the resource string of a USBTMC instrument. The serial
// field is omitted when serial is empty.
func USBAddress(vid, pid uint16, serial string) string {
	if serial == "" {
		return fmt.Sprintf("USB0::0x%04X::0x%04X::INSTR", vid, pid)
	}
	return fmt.Sprintf("USB0::0x%04X::0x%04X::%s::INSTR", vid, pid, serial)
}

// SimAddress formats the resource string of a simulated instrument.
func SimAddress(name string) string {
	return fmt.Sprintf("SIM0::%s::INSTR", name)
}
