package gemdrive

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// The lower half of the Atari ST character set is ASCII.
var upperHalf = [128]rune{
	'Ç', 'ü', 'é', 'â', 'ä', 'à', 'å', 'ç', 'ê', 'ë', 'è', 'ï', 'î', 'ì', 'Ä', 'Å',
	'É', 'æ', 'Æ', 'ô', 'ö', 'ò', 'û', 'ù', 'ÿ', 'Ö', 'Ü', '¢', '£', '¥', 'ß', 'ƒ',
	'á', 'í', 'ó', 'ú', 'ñ', 'Ñ', 'ª', 'º', '¿', '⌐', '¬', '½', '¼', '¡', '«', '»',
	'ã', 'õ', 'Ø', 'ø', 'œ', 'Œ', 'À', 'Ã', 'Õ', '¨', '´', '†', '¶', '©', '®', '™',
	'ĳ', 'Ĳ', 'א', 'ב', 'ג', 'ד', 'ה', 'ו', 'ז', 'ח', 'ט', 'י', 'כ', 'ל', 'מ', 'נ',
	'ס', 'ע', 'פ', 'צ', 'ק', 'ר', 'ש', 'ת', 'ן', 'ך', 'ם', 'ף', 'ץ', '§', '∧', '∞',
	'α', 'β', 'Γ', 'π', 'Σ', 'σ', 'µ', 'τ', 'Φ', 'Θ', 'Ω', 'δ', '∮', 'ϕ', '∈', '∩',
	'≡', '±', '≥', '≤', '⌠', '⌡', '÷', '≈', '°', '∙', '·', '√', 'ⁿ', '²', '³', '¯',
}

const rce = '_' // encoding replacement character

var encodeUpper = func() map[rune]byte {
	m := make(map[rune]byte, len(upperHalf))
	for i, r := range upperHalf {
		m[r] = byte(0x80 + i)
	}
	return m
}()

type charmap struct{}

// AtariST is the character set of the host's file names.
var AtariST encoding.Encoding = &charmap{}

func (m *charmap) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &decoder{}}
}

func (m *charmap) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &encoder{}}
}

type decoder struct{ transform.NopResetter }

func (d *decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for _, c := range src {
		r := rune(c)
		if c >= 0x80 {
			r = upperHalf[c-0x80]
		}
		if utf8.RuneLen(r) > len(dst)-nDst {
			err = transform.ErrShortDst
			break
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc++
	}
	return
}

type encoder struct{ transform.NopResetter }

func (e *encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if !atEOF && !utf8.FullRune(src[nSrc:]) {
			err = transform.ErrShortSrc
			break
		}
		if nDst >= len(dst) {
			err = transform.ErrShortDst
			break
		}
		r, size := utf8.DecodeRune(src[nSrc:])
		switch c, ok := encodeUpper[r]; {
		case r < 0x80 && size == 1:
			dst[nDst] = byte(r)
		case ok:
			dst[nDst] = c
		default:
			dst[nDst] = rce
		}
		nDst++
		nSrc += size
	}
	return
}

// decodeName converts a host file name to UTF-8.
func decodeName(b []byte) string {
	s, err := AtariST.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// encodeName converts a UTF-8 file name to the host's character set.
func encodeName(s string) []byte {
	b, err := AtariST.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return b
}
