package encoding_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/stackvity/blade-formatter/pkg/formatter/encoding"
)

func encodeWith(t *testing.T, text string, enc transform.Transformer) []byte {
	t.Helper()
	out, _, err := transform.Bytes(enc, []byte(text))
	require.NoError(t, err)
	return out
}

func TestDetectAndDecode_ASCIIAndUTF8(t *testing.T) {
	h := encoding.NewCharsetHandler("")

	for _, input := range []string{
		"@if($a)\n    {{ $b }}\n@endif\n",
		"<p>{{ __('Grüße') }}</p>\n",
	} {
		out, name, _, err := h.DetectAndDecode([]byte(input))
		require.NoError(t, err)
		assert.Equal(t, encoding.UTF8, name)
		assert.Equal(t, input, string(out))
	}
}

func TestDetectAndDecode_Latin1RoundTrip(t *testing.T) {
	h := encoding.NewCharsetHandler("")
	original := "<p>Héllo, Lätin-1!</p>\n"
	raw := encodeWith(t, original, charmap.ISO8859_1.NewEncoder())

	decoded, name, certain, err := h.DetectAndDecode(raw)
	require.NoError(t, err)
	assert.Contains(t, []string{"windows-1252", "iso-8859-1"}, name)
	assert.False(t, certain)
	assert.Equal(t, original, string(decoded))

	back, err := h.Encode(decoded, name)
	require.NoError(t, err)
	assert.Equal(t, raw, back, "re-encoding must reproduce the original bytes")
}

func TestDetectAndDecode_DefaultEncoding(t *testing.T) {
	h := encoding.NewCharsetHandler("iso-8859-2")
	raw := encodeWith(t, "Zażółć", charmap.ISO8859_2.NewEncoder())

	decoded, name, certain, err := h.DetectAndDecode(raw)
	require.NoError(t, err)
	assert.True(t, certain, "a configured default counts as certain")
	assert.Equal(t, "iso-8859-2", name)
	assert.Equal(t, "Zażółć", string(decoded))
}

func TestDetectAndDecode_UTF16WithBOM(t *testing.T) {
	h := encoding.NewCharsetHandler("")
	body := encodeWith(t, "@yield('content')", unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder())
	raw := append([]byte{0xFF, 0xFE}, body...)

	assert.False(t, h.IsBinary(raw), "BOM-prefixed UTF-16 is text")

	decoded, name, certain, err := h.DetectAndDecode(raw)
	require.NoError(t, err)
	assert.True(t, certain)
	assert.Contains(t, name, "utf-16le")
	assert.Contains(t, string(decoded), "@yield('content')")
}

func TestEncode(t *testing.T) {
	h := encoding.NewCharsetHandler("")

	t.Run("UTF-8 is passed through", func(t *testing.T) {
		out, err := h.Encode([]byte("ü"), "utf-8")
		require.NoError(t, err)
		assert.Equal(t, []byte("ü"), out)

		out, err = h.Encode([]byte("ü"), "")
		require.NoError(t, err)
		assert.Equal(t, []byte("ü"), out)
	})

	t.Run("Unknown encoding fails", func(t *testing.T) {
		_, err := h.Encode([]byte("x"), "no-such-charset")
		assert.Error(t, err)
	})
}

func TestIsBinary(t *testing.T) {
	h := encoding.NewCharsetHandler("")

	testCases := []struct {
		name    string
		content []byte
		want    bool
	}{
		{"Empty", nil, false},
		{"Blade template", []byte("<div>\n@if($x)\n{{ $x }}\n@endif\n</div>\n"), false},
		{"PNG header", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), true},
		{"Mostly null bytes", append([]byte("ab"), bytes.Repeat([]byte{0}, 64)...), true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, h.IsBinary(tc.content))
		})
	}
}
