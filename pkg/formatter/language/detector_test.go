package language_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/blade-formatter/pkg/formatter/language"
)

func TestEnryDetector_Detect(t *testing.T) {
	d := language.NewEnryDetector(nil)

	t.Run("Blade by multi-dot extension", func(t *testing.T) {
		lang, conf, err := d.Detect([]byte("@extends('layouts.app')\n@section('content')\n@endsection\n"), "resources/views/home.blade.php")
		require.NoError(t, err)
		assert.Equal(t, language.Blade, lang)
		assert.Greater(t, conf, 0.0)
	})

	t.Run("Empty content is unknown", func(t *testing.T) {
		lang, conf, err := d.Detect(nil, "empty.blade.php")
		require.NoError(t, err)
		assert.Equal(t, language.Unknown, lang)
		assert.Zero(t, conf)
	})

	t.Run("Plain text", func(t *testing.T) {
		lang, _, err := d.Detect([]byte("just some notes"), "notes.txt")
		require.NoError(t, err)
		assert.Equal(t, language.PlainText, lang)
	})
}

func TestEnryDetector_Overrides(t *testing.T) {
	d := language.NewEnryDetector(map[string]string{
		"TPL":        " Blade ",
		".php":       "php",
		".blade.php": "blade",
		"":           "ignored",
		".":          "ignored",
	})

	lang, conf, err := d.Detect([]byte("anything"), "partials/nav.tpl")
	require.NoError(t, err)
	assert.Equal(t, language.Blade, lang)
	assert.Equal(t, 1.0, conf)

	lang, _, err = d.Detect([]byte("anything"), "partials/nav.blade.php")
	require.NoError(t, err)
	assert.Equal(t, language.Blade, lang, "longest matching override wins")

	lang, _, err = d.Detect([]byte("anything"), "app/Kernel.php")
	require.NoError(t, err)
	assert.Equal(t, language.PHP, lang)
}

func TestIsTemplateLanguage(t *testing.T) {
	for _, lang := range []string{"blade", "Blade", "php", "html"} {
		assert.True(t, language.IsTemplateLanguage(lang), lang)
	}
	for _, lang := range []string{"go", "plaintext", "unknown", ""} {
		assert.False(t, language.IsTemplateLanguage(lang), lang)
	}
}
