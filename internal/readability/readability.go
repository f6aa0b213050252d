// Package readability scores post text with an Automated Readability Index
// approximation.
package readability

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf16"
)

const (
	MinGrade = 1
	MaxGrade = 14
	// GreatMaxGrade is the highest grade still labelled Great.
	GreatMaxGrade = 8

	LabelGreat   = "Great"
	LabelComplex = "Complex"
)

// Score is a readability grade.
type Score struct {
	Grade int    `json:"grade"`
	Label string `json:"label"`
}

// String renders the score the way the compose UI shows it.
func (s Score) String() string {
	return fmt.Sprintf("Grade %d (%s)", s.Grade, s.Label)
}

// Good reports whether the grade is in the Great band.
func (s Score) Good() bool {
	return s.Grade <= GreatMaxGrade
}

// Evaluate scores text. Words are space separated and sentences are period separated,
// so the counts are rough; that is all the grade needs.
func Evaluate(text string) Score {
	words := len(strings.Split(text, " "))
	sentences := len(strings.Split(text, "."))
	chars := utf16Len(text)

	raw := 4.71*(float64(chars)/float64(words)) + 0.5*(float64(words)/float64(sentences)) - 21.43
	grade := int(math.Floor(raw + 0.5))
	grade = max(MinGrade, min(MaxGrade, grade))

	label := LabelComplex
	if grade <= GreatMaxGrade {
		label = LabelGreat
	}
	return Score{Grade: grade, Label: label}
}

// utf16Len counts UTF-16 code units, so characters outside the BMP, such as most
// emoji, count twice.
func utf16Len(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}
