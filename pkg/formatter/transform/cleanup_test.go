package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stackvity/blade-formatter/pkg/formatter/transform"
)

func TestCleanup(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "semicolon before close", input: "{{ $x; }}", want: "{{ $x }}"},
		{name: "tight semicolon", input: "{{$x;}}", want: "{{$x }}"},
		{name: "newline before close", input: "{{ foo(\n    $a\n);\n}}", want: "{{ foo(\n    $a\n) }}"},
		{name: "escaped close", input: "{!! $html; !!}", want: "{!! $html !!}"},
		{name: "escaped close on next line", input: "{!! $html;\n    !!}", want: "{!! $html !!}"},
		{name: "comment close", input: "{{-- x; --}}", want: "{{-- x --}}"},
		{name: "semicolons elsewhere survive", input: "<?php $a = 1; ?> {{ $a }}", want: "<?php $a = 1; ?> {{ $a }}"},
		{name: "multiple tags", input: "{{ $a; }} {{ $b; }}", want: "{{ $a }} {{ $b }}"},
		{name: "script braces outside tags survive", input: "<script>{ run(); }};</script>", want: "<script>{ run(); }};</script>"},
		{name: "script after an echo", input: "{{ $a }}<script>if (x) { run(); }}</script>", want: "{{ $a }}<script>if (x) { run(); }}</script>"},
		{name: "inner semicolons survive", input: "{{ $a; $b }}", want: "{{ $a; $b }}"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, transform.Cleanup(tc.input))
		})
	}
}

func TestPadEchoes(t *testing.T) {
	assert.Equal(t, "{{ $x }}", transform.PadEchoes("{{$x }}"))
	assert.Equal(t, "{{ $x }}", transform.PadEchoes("{{   $x}}"))
	assert.Equal(t, "{!! $x !!}", transform.PadEchoes("{!!$x!!}"))
	assert.Equal(t, "{{ foo(\n    $a\n) }}", transform.PadEchoes("{{foo(\n    $a\n) }}"))
	assert.Equal(t, "{{-- keep  --}}", transform.PadEchoes("{{-- keep  --}}"))
}
