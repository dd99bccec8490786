// Package ber converts BER encodings to DER.
//
// The conversion covers what certificate producers actually emit:
// indefinite lengths, non-minimal length octets, constructed (segmented)
// OCTET STRING and BIT STRING values, and non-canonical BOOLEAN true. It
// does not re-sort SET OF members.
package ber

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const maxDepth = 64

const (
	tagBoolean     = 0x01
	tagBitString   = 0x03
	tagOctetString = 0x04
	classMask      = 0xc0
	constructed    = 0x20
)

var (
	errTruncated   = errors.New("ber: truncated element")
	errHighTag     = errors.New("ber: high tag numbers are not supported")
	errTooDeep     = errors.New("ber: nesting too deep")
	errLengthRange = errors.New("ber: length out of range")
)

// element is one decoded TLV. For constructed elements children holds the
// decoded members; otherwise content holds the value octets. raw is the
// element's exact input encoding.
type element struct {
	tag      byte
	content  []byte
	children []element
	raw      []byte
}

func (e element) isConstructed() bool { return e.tag&constructed != 0 }

// ToDER returns the DER encoding of the single BER element in data.
func ToDER(data []byte) ([]byte, error) {
	el, rest, err := parse(data, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("ber: %d trailing bytes", len(rest))
	}
	var b cryptobyte.Builder
	if err := encode(&b, el); err != nil {
		return nil, err
	}
	return b.Bytes()
}

// Children returns the exact input encodings of the direct members of the
// single constructed element in data, in order. The spans alias data.
func Children(data []byte) ([][]byte, error) {
	el, rest, err := parse(data, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("ber: %d trailing bytes", len(rest))
	}
	if !el.isConstructed() {
		return nil, fmt.Errorf("ber: element %#x is not constructed", el.tag)
	}
	spans := make([][]byte, len(el.children))
	for i, child := range el.children {
		spans[i] = child.raw
	}
	return spans, nil
}

func parse(data []byte, depth int) (element, []byte, error) {
	el, rest, err := parseElement(data, depth)
	if err != nil {
		return element{}, nil, err
	}
	el.raw = data[:len(data)-len(rest)]
	return el, rest, nil
}

func parseElement(data []byte, depth int) (element, []byte, error) {
	if depth > maxDepth {
		return element{}, nil, errTooDeep
	}
	if len(data) < 2 {
		return element{}, nil, errTruncated
	}
	el := element{tag: data[0]}
	if el.tag&0x1f == 0x1f {
		return element{}, nil, errHighTag
	}

	lenByte := data[1]
	data = data[2:]

	if lenByte == 0x80 {
		if !el.isConstructed() {
			return element{}, nil, errors.New("ber: indefinite length on primitive element")
		}
		for {
			if len(data) < 2 {
				return element{}, nil, errTruncated
			}
			if data[0] == 0 && data[1] == 0 {
				return el, data[2:], nil
			}
			child, rest, err := parse(data, depth+1)
			if err != nil {
				return element{}, nil, err
			}
			el.children = append(el.children, child)
			data = rest
		}
	}

	length := int(lenByte)
	if lenByte&0x80 != 0 {
		n := int(lenByte & 0x7f)
		if n > 4 || len(data) < n {
			return element{}, nil, errLengthRange
		}
		length = 0
		for _, b := range data[:n] {
			length = length<<8 | int(b)
		}
		data = data[n:]
	}
	if length < 0 || length > len(data) {
		return element{}, nil, errTruncated
	}
	body, rest := data[:length], data[length:]

	if !el.isConstructed() {
		el.content = body
		return el, rest, nil
	}
	for len(body) > 0 {
		child, next, err := parse(body, depth+1)
		if err != nil {
			return element{}, nil, err
		}
		el.children = append(el.children, child)
		body = next
	}
	return el, rest, nil
}

func encode(b *cryptobyte.Builder, el element) error {
	universal := el.tag&classMask == 0
	number := el.tag &^ constructed

	if universal && el.isConstructed() && (number == tagOctetString || number == tagBitString) {
		content, err := flattenString(el, number)
		if err != nil {
			return err
		}
		b.AddASN1(cbasn1.Tag(number), func(b *cryptobyte.Builder) { b.AddBytes(content) })
		return nil
	}

	if !el.isConstructed() {
		content := el.content
		if universal && number == tagBoolean && len(content) == 1 && content[0] != 0 {
			content = []byte{0xff}
		}
		b.AddASN1(cbasn1.Tag(el.tag), func(b *cryptobyte.Builder) { b.AddBytes(content) })
		return nil
	}

	var err error
	b.AddASN1(cbasn1.Tag(el.tag), func(b *cryptobyte.Builder) {
		for _, child := range el.children {
			if err = encode(b, child); err != nil {
				return
			}
		}
	})
	return err
}

// flattenString concatenates the segments of a constructed string. BIT
// STRING segments each carry an unused-bits octet; only the last may be
// non-zero.
func flattenString(el element, number byte) ([]byte, error) {
	var out []byte
	var unused byte
	if number == tagBitString {
		out = []byte{0}
	}
	for i, child := range el.children {
		if child.tag&^constructed != number || child.tag&classMask != 0 {
			return nil, fmt.Errorf("ber: segment tag %#x inside string %#x", child.tag, el.tag)
		}
		seg := child.content
		if child.isConstructed() {
			var err error
			if seg, err = flattenString(child, number); err != nil {
				return nil, err
			}
		}
		if number == tagBitString {
			if len(seg) == 0 {
				return nil, errors.New("ber: empty bit string segment")
			}
			if seg[0] != 0 && i != len(el.children)-1 {
				return nil, errors.New("ber: unused bits in non-final bit string segment")
			}
			unused = seg[0]
			seg = seg[1:]
		}
		out = append(out, seg...)
	}
	if number == tagBitString {
		out[0] = unused
	}
	return out, nil
}
