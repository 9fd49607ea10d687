package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStyles_RenderText(t *testing.T) {
	// Given: default styles
	styles := DefaultStyles()

	// When: rendering stage indicators
	active := styles.Active.Render("● Index")
	dim := styles.Dim.Render("○ Catalog")

	// Then: the text survives styling
	assert.Contains(t, active, "● Index")
	assert.Contains(t, dim, "○ Catalog")
	assert.Contains(t, styles.Header.Render("studyrag"), "studyrag")
}

func TestGetStyles_WithNoColor(t *testing.T) {
	// When: getting styles with noColor=true
	styles := GetStyles(true)

	// Then: rendering is plain
	assert.Equal(t, "test", styles.Success.Render("test"))
	assert.Equal(t, "test", styles.Error.Render("test"))
	assert.Equal(t, "test", styles.Label.Render("test"))
}

func TestGetStyles_WithColor(t *testing.T) {
	styles := GetStyles(false)
	assert.Contains(t, styles.Success.Render("test"), "test")
}
