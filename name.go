package x509kit

import (
	"bytes"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// AttributeTypeAndValue is one attribute of a distinguished name. The value
// is held raw so its string type and bytes survive re-encoding.
type AttributeTypeAndValue struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue
}

// RelativeDistinguishedNameSET is one RDN: a set of attributes.
type RelativeDistinguishedNameSET []AttributeTypeAndValue

// Name is an X.501 distinguished name (an RDNSequence).
type Name []RelativeDistinguishedNameSET

// AppendAttribute appends a single-valued RDN holding value as a UTF8String.
func (n *Name) AppendAttribute(oid asn1.ObjectIdentifier, value string) error {
	der, err := asn1.MarshalWithParams(value, "utf8")
	if err != nil {
		return fmt.Errorf("encoding %s attribute: %w", oid, err)
	}
	*n = append(*n, RelativeDistinguishedNameSET{{
		Type:  slices.Clone(oid),
		Value: asn1.RawValue{FullBytes: der},
	}})
	return nil
}

func (n *Name) AppendCommonName(cn string) error { return n.AppendAttribute(OIDCommonName, cn) }
func (n *Name) AppendCountry(c string) error     { return n.AppendAttribute(OIDCountry, c) }
func (n *Name) AppendLocality(l string) error    { return n.AppendAttribute(OIDLocality, l) }
func (n *Name) AppendProvince(st string) error   { return n.AppendAttribute(OIDProvince, st) }
func (n *Name) AppendOrganization(o string) error {
	return n.AppendAttribute(OIDOrganization, o)
}
func (n *Name) AppendOrganizationalUnit(ou string) error {
	return n.AppendAttribute(OIDOrganizationalUnit, ou)
}

// FindFirst returns the decoded string value of the first attribute of type
// oid. It reports false when there is none or when that first value is not
// a decodable string.
func (n Name) FindFirst(oid asn1.ObjectIdentifier) (string, bool) {
	for _, rdn := range n {
		for _, atv := range rdn {
			if atv.Type.Equal(oid) {
				s, err := decodeString(atv.Value)
				if err != nil {
					return "", false
				}
				return s, true
			}
		}
	}
	return "", false
}

// CommonName returns the first common name.
func (n Name) CommonName() (string, bool) {
	return n.FindFirst(OIDCommonName)
}

// Equal reports whether n and other have identical DER encodings.
func (n Name) Equal(other Name) bool {
	a, errA := asn1.Marshal(n)
	b, errB := asn1.Marshal(other)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// ContainsRDN reports whether n holds an RDN encoded identically to rdn.
func (n Name) ContainsRDN(rdn RelativeDistinguishedNameSET) bool {
	want, err := asn1.Marshal(rdn)
	if err != nil {
		return false
	}
	for _, have := range n {
		der, err := asn1.Marshal(have)
		if err == nil && bytes.Equal(der, want) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of n.
func (n Name) Clone() Name {
	if n == nil {
		return nil
	}
	out := make(Name, len(n))
	for i, rdn := range n {
		out[i] = make(RelativeDistinguishedNameSET, len(rdn))
		for j, atv := range rdn {
			out[i][j] = AttributeTypeAndValue{
				Type:  slices.Clone(atv.Type),
				Value: asn1.RawValue{FullBytes: bytes.Clone(rawFullBytes(atv.Value))},
			}
		}
	}
	return out
}

// String renders n in RFC 4514 order (last RDN first). Values that are not
// decodable strings are rendered as #hex of their DER.
func (n Name) String() string {
	var parts []string
	for i := len(n) - 1; i >= 0; i-- {
		var attrs []string
		for _, atv := range n[i] {
			label := atv.Type.String()
			for _, s := range attributeShortNames {
				if s.oid.Equal(atv.Type) {
					label = s.name
					break
				}
			}
			value, err := decodeString(atv.Value)
			if err != nil {
				value = "#" + hex.EncodeToString(rawFullBytes(atv.Value))
			} else {
				value = escapeRDNValue(value)
			}
			attrs = append(attrs, label+"="+value)
		}
		parts = append(parts, strings.Join(attrs, "+"))
	}
	return strings.Join(parts, ",")
}

func escapeRDNValue(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case strings.ContainsRune(`,+"\<>;`, r),
			i == 0 && (r == ' ' || r == '#'),
			i == len(s)-1 && r == ' ':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decodeString(v asn1.RawValue) (string, error) {
	var s string
	if err := unmarshalDER(rawFullBytes(v), &s, "string"); err != nil {
		return "", err
	}
	return s, nil
}

// rawFullBytes returns the complete encoding of v, rebuilding it when v was
// assembled from its parts.
func rawFullBytes(v asn1.RawValue) []byte {
	if len(v.FullBytes) > 0 {
		return v.FullBytes
	}
	der, err := asn1.Marshal(v)
	if err != nil {
		return nil
	}
	return der
}
