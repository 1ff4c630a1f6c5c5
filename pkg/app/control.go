package app

// Sequence is the 4-bit modular fragment counter carried in every
// application control field.
type Sequence uint8

// Increment advances s by one, wrapping at 16, and returns the new value.
func (s *Sequence) Increment() Sequence {
	*s = (*s + 1) & 0x0F
	return *s
}

// Value returns the masked 4-bit sequence value.
func (s Sequence) Value() uint8 {
	return uint8(s) & 0x0F
}

// ControlField is the single-byte application header that precedes the
// function code on every fragment.
type ControlField struct {
	Fir bool
	Fin bool
	Con bool
	Uns bool
	Seq Sequence
}

const (
	ctrlFir = 1 << 6
	ctrlFin = 1 << 5
	ctrlCon = 1 << 4
	ctrlUns = 1 << 3
)

// ParseControlField decodes a single control byte.
func ParseControlField(b byte) ControlField {
	return ControlField{
		Fir: b&ctrlFir != 0,
		Fin: b&ctrlFin != 0,
		Con: b&ctrlCon != 0,
		Uns: b&ctrlUns != 0,
		Seq: Sequence(b & 0x0F),
	}
}

// Byte encodes the control field back to its wire representation.
func (c ControlField) Byte() byte {
	var b byte
	if c.Fir {
		b |= ctrlFir
	}
	if c.Fin {
		b |= ctrlFin
	}
	if c.Con {
		b |= ctrlCon
	}
	if c.Uns {
		b |= ctrlUns
	}
	return b | byte(c.Seq.Value())
}

// RequestControlField builds the control field for a single-fragment
// request (FIR=FIN=true, CON=UNS=false).
func RequestControlField(seq Sequence) ControlField {
	return ControlField{Fir: true, Fin: true, Seq: seq}
}

// SingleResponseControlField builds the control field for a
// single-fragment solicited response that does not require a confirm.
func SingleResponseControlField(seq Sequence) ControlField {
	return ControlField{Fir: true, Fin: true, Seq: seq}
}

// ResponseControlField builds a general solicited-response control
// field, parameterized by whether a confirm is demanded and whether
// this is the final fragment of a multi-fragment series.
func ResponseControlField(seq Sequence, fir, fin, con bool) ControlField {
	return ControlField{Fir: fir, Fin: fin, Con: con, Seq: seq}
}

// UnsolicitedResponseControlField builds the control field for an
// unsolicited response fragment. Unsolicited responses always demand a
// confirm and always set UNS.
func UnsolicitedResponseControlField(seq Sequence) ControlField {
	return ControlField{Fir: true, Fin: true, Con: true, Uns: true, Seq: seq}
}

// ResponseHeaderLength is the fixed wire length, in bytes, of a response
// header: control byte, function byte, IIN1, IIN2.
const ResponseHeaderLength = 4

// ResponseHeader is the fixed-size preamble of every response fragment.
type ResponseHeader struct {
	Control  ControlField
	Function FunctionCode
	Iin      Iin
}

// Write serializes the header into the first ResponseHeaderLength bytes
// of dst, returning an error if dst is too short.
func (h ResponseHeader) Write(dst []byte) error {
	if len(dst) < ResponseHeaderLength {
		return ErrBufferTooSmall
	}
	dst[0] = h.Control.Byte()
	dst[1] = byte(h.Function)
	dst[2] = byte(h.Iin.Iin1)
	dst[3] = byte(h.Iin.Iin2)
	return nil
}
